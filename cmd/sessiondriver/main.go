// Command sessiondriver replays a YAML scenario through the session
// workflow reducer, executing every emitted effect against fixed
// in-memory fakes and printing the resulting lifecycle/effect trace. It
// demonstrates the reducer end to end; it is not part of the core.
package main

import (
	"context"
	"flag"
	"fmt"

	"goa.design/clue/log"

	"github.com/smartcomputer-ai/agent-session-workflow/runtime/agent/telemetry"
)

func main() {
	var (
		scenarioF = flag.String("scenario", "cmd/sessiondriver/scenarios/basic.yaml", "path to a scenario YAML file")
		dbgF      = flag.Bool("debug", false, "enable debug logs")
	)
	flag.Parse()

	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))
	if *dbgF {
		ctx = log.Context(ctx, log.WithDebug())
	}

	if err := run(ctx, *scenarioF); err != nil {
		log.Error(ctx, err, log.KV{K: "component", V: "sessiondriver"})
		fmt.Println("sessiondriver failed:", err)
		panic(err)
	}
}

func run(ctx context.Context, scenarioPath string) error {
	sc, err := loadScenario(scenarioPath)
	if err != nil {
		return err
	}

	logger := telemetry.NewClueLogger()
	tracer := telemetry.NewNoopTracer()
	metrics := telemetry.NewNoopMetrics()

	driver := newSessionDriver(sc, logger, tracer, metrics)
	log.Print(ctx, log.KV{K: "session_id", V: string(driver.state.SessionID)})

	if err := driver.bootstrap(ctx, sc.HostSessionID); err != nil {
		return err
	}

	for i, step := range sc.Steps {
		if err := driver.runStep(ctx, step); err != nil {
			return fmt.Errorf("step %d (%s): %w", i, step.Type, err)
		}
		fmt.Printf("step %d: %-16s lifecycle=%-16s conversation_refs=%v\n",
			i, step.Type, driver.state.Lifecycle, driver.state.ConversationMessageRefs)
	}

	runs, err := driver.sessions.ListRunsBySession(ctx, string(driver.state.SessionID), nil)
	if err != nil {
		return fmt.Errorf("list run records: %w", err)
	}
	for _, run := range runs {
		fmt.Printf("run record: run_id=%s status=%-10s agent=%s\n", run.RunID, run.Status, run.AgentID)
	}

	return nil
}
