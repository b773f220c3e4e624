package ambient_test

import (
	"context"
	"fmt"
	"time"

	"github.com/bft-labs/ambient/pkg/ambient"
)

// ExampleNew demonstrates how to embed ambient in your application.
func ExampleNew() {
	cfg := ambient.DefaultConfig()
	cfg.Modules = []ambient.ModuleDecl{{
		Module:   "greeting",
		Position: "middle_center",
		Config:   map[string]any{"text": "Good morning"},
	}}

	a, err := ambient.New(cfg)
	if err != nil {
		fmt.Printf("failed to create ambient: %v\n", err)
		return
	}

	updates, cancel := a.Subscribe(8)
	defer cancel()

	if err := a.Start(context.Background()); err != nil {
		fmt.Printf("failed to start: %v\n", err)
		return
	}
	defer a.Stop()

	select {
	case u := <-updates:
		fmt.Println(u.ModuleID, u.Snapshot.Visible[0].Title)
	case <-time.After(time.Second):
		fmt.Println("no update")
	}

	// Output: module_0_greeting Good morning
}

// Example_withEventHandler demonstrates how to receive lifecycle events.
func Example_withEventHandler() {
	cfg := ambient.DefaultConfig()
	cfg.Modules = []ambient.ModuleDecl{{Module: "clock", Position: "top_left"}}

	a, err := ambient.New(cfg, ambient.WithEventHandler(&stateLogger{}))
	if err != nil {
		fmt.Printf("failed to create ambient: %v\n", err)
		return
	}

	_ = a.Start(context.Background())
	_ = a.Stop()

	// Output:
	// Stopped -> Starting
	// Starting -> Running
	// Running -> Stopping
	// Stopping -> Stopped
}

// stateLogger prints state transitions and ignores everything else.
type stateLogger struct {
	ambient.BaseEventHandler
}

func (stateLogger) OnStateChange(e ambient.StateChangeEvent) {
	fmt.Printf("%s -> %s\n", e.Previous, e.Current)
}

// Example_customFetcher demonstrates serving a module from your own source.
func Example_customFetcher() {
	cfg := ambient.DefaultConfig()
	cfg.Modules = []ambient.ModuleDecl{{Module: "uptime", Position: "bottom_left"}}

	uptime := ambient.FetcherFunc(func(ctx context.Context, spec ambient.ModuleSpec) ambient.FetchResult {
		return ambient.FetchResult{
			Items:     []ambient.Item{{ID: "uptime", Title: "up 3 days"}},
			FetchedAt: time.Now(),
		}
	})

	a, err := ambient.New(cfg, ambient.WithFetcher("uptime", uptime))
	if err != nil {
		fmt.Printf("failed to create ambient: %v\n", err)
		return
	}
	updates, cancel := a.Subscribe(8)
	defer cancel()

	_ = a.Start(context.Background())
	defer a.Stop()

	u := <-updates
	fmt.Println(u.Snapshot.Visible[0].Title)

	// Output: up 3 days
}
