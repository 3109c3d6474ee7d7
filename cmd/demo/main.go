// Command demo is a non-interactive wiring example for the editor core,
// not a product CLI (spec.md's non-goals leave CLI/GUI presentation to a
// host application). It registers two trivial node factories directly
// against the Registry — standing in for what a loaded plugin would
// otherwise contribute — connects them, and runs the Execution Engine
// once.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/nodeloom/core/internal/app"
	"github.com/nodeloom/core/internal/graph"
	"github.com/nodeloom/core/internal/ids"
	"github.com/nodeloom/core/internal/registry"
	"github.com/nodeloom/core/internal/types"
)

// constantFactory produces a node with no inputs that always outputs the
// same float value.
type constantFactory struct{ value float64 }

func (f constantFactory) Metadata() registry.NodeMetadata {
	return registry.NodeMetadata{
		TypeID:      "demo.constant",
		Category:    "demo",
		DisplayName: "Constant",
		Outputs:     []types.PortDefinition{{Name: "value", Direction: ids.Output, Type: types.Float}},
		PanelType:   types.PanelNone,
	}
}

func (f constantFactory) CreateNode(pos types.Vec3) (registry.PluginNodeHandle, error) {
	return &constantProcessor{BaseHandle: registry.NewBaseHandle(pos, nil), value: f.value}, nil
}

type constantProcessor struct {
	*registry.BaseHandle
	value float64
}

func (p *constantProcessor) Process(ctx context.Context, inputs map[ids.PortIndex]types.NodeData, params map[string]types.NodeData) (map[ids.PortIndex]types.NodeData, error) {
	return map[ids.PortIndex]types.NodeData{0: types.Float64(p.value)}, nil
}

// doubleFactory produces a node that doubles its single float input.
type doubleFactory struct{}

func (f doubleFactory) Metadata() registry.NodeMetadata {
	return registry.NodeMetadata{
		TypeID:      "demo.double",
		Category:    "demo",
		DisplayName: "Double",
		Inputs:      []types.PortDefinition{{Name: "in", Direction: ids.Input, Type: types.Float}},
		Outputs:     []types.PortDefinition{{Name: "out", Direction: ids.Output, Type: types.Float}},
		PanelType:   types.PanelNone,
	}
}

func (f doubleFactory) CreateNode(pos types.Vec3) (registry.PluginNodeHandle, error) {
	return &doubleProcessor{BaseHandle: registry.NewBaseHandle(pos, nil)}, nil
}

type doubleProcessor struct {
	*registry.BaseHandle
}

func (p *doubleProcessor) Process(ctx context.Context, inputs map[ids.PortIndex]types.NodeData, params map[string]types.NodeData) (map[ids.PortIndex]types.NodeData, error) {
	in := inputs[0]
	return map[ids.PortIndex]types.NodeData{0: types.Float64(in.Float * 2)}, nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	ed, err := app.New(os.Stdout, &app.Config{
		LogFormat:       "text",
		LogLevel:        "info",
		PanelStackX:     600,
		PanelStackWidth: 240,
	})
	if err != nil {
		return fmt.Errorf("demo: build editor: %w", err)
	}
	defer ed.Close()

	reg := ed.Registry()
	if err := reg.Register("demo.constant", constantFactory{value: 21}); err != nil {
		return err
	}
	if err := reg.Register("demo.double", doubleFactory{}); err != nil {
		return err
	}

	src, err := ed.CreateNode("demo.constant", types.Vec3{})
	if err != nil {
		return fmt.Errorf("demo: create constant node: %w", err)
	}
	dst, err := ed.CreateNode("demo.double", types.Vec3{X: 200})
	if err != nil {
		return fmt.Errorf("demo: create double node: %w", err)
	}

	if _, err := ed.RootGraph().AddConnection(
		graph.Connection{FromNode: src, ToNode: dst, ToInput: 0},
		graph.AddOptions{},
	); err != nil {
		return fmt.Errorf("demo: connect nodes: %w", err)
	}

	summary, err := ed.Run(context.Background())
	if err != nil {
		return fmt.Errorf("demo: run: %w", err)
	}
	fmt.Printf("executed=%d errored=%d skipped=%d\n", summary.Executed, summary.Errored, summary.Skipped)

	v, ok := ed.Output(dst, 0)
	if !ok {
		return fmt.Errorf("demo: no output produced for %d", dst)
	}
	fmt.Printf("result: %v\n", v.Float)
	return nil
}
