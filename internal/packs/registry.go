// ABOUTME: Thread-safe registry of built-in tool packs
// ABOUTME: Detects name collisions, lists tools in registration order, and classifies access

package packs

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/2389/books-mcp/internal/auth"
)

// ErrToolCollision indicates a tool name already exists from another pack.
var ErrToolCollision = errors.New("tool name collision")

// ErrPackAlreadyRegistered indicates a pack with the same ID is already registered.
var ErrPackAlreadyRegistered = errors.New("pack already registered")

// Registry maintains the registered packs and their tools.
type Registry struct {
	mu       sync.RWMutex
	packs    map[string]*BuiltinPack
	builtins map[string]*builtinEntry // tool name -> entry
	order    []string                 // tool names in registration order
	logger   *slog.Logger
}

// NewRegistry creates a new Registry instance.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		packs:    make(map[string]*BuiltinPack),
		builtins: make(map[string]*builtinEntry),
		logger:   logger,
	}
}

// RegisterBuiltinPack registers a pack of built-in tools.
// Returns an error if the pack ID or any tool name is already registered;
// nothing is registered in that case.
func (r *Registry) RegisterBuiltinPack(pack *BuiltinPack) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.packs[pack.ID]; exists {
		return fmt.Errorf("%w: %s", ErrPackAlreadyRegistered, pack.ID)
	}

	seen := make(map[string]bool, len(pack.Tools))
	for _, tool := range pack.Tools {
		name := tool.Definition.Name
		if name == "" {
			return fmt.Errorf("pack %s: tool with empty name", pack.ID)
		}
		if tool.Handler == nil {
			return fmt.Errorf("pack %s: tool %s has no handler", pack.ID, name)
		}
		if entry, exists := r.builtins[name]; exists {
			return fmt.Errorf("%w: tool '%s' already registered by pack '%s'", ErrToolCollision, name, entry.PackID)
		}
		if seen[name] {
			return fmt.Errorf("%w: tool '%s' listed twice in pack '%s'", ErrToolCollision, name, pack.ID)
		}
		seen[name] = true
	}

	for _, tool := range pack.Tools {
		r.builtins[tool.Definition.Name] = &builtinEntry{Tool: tool, PackID: pack.ID}
		r.order = append(r.order, tool.Definition.Name)
	}
	r.packs[pack.ID] = pack

	r.logger.Info("builtin pack registered",
		"pack_id", pack.ID,
		"tool_count", len(pack.Tools),
		"total_tools", len(r.builtins),
	)
	return nil
}

// GetBuiltinTool returns a builtin tool by name, or nil if not found.
func (r *Registry) GetBuiltinTool(name string) *BuiltinTool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if entry, ok := r.builtins[name]; ok {
		return entry.Tool
	}
	return nil
}

// GetAllTools returns every tool definition in registration order.
func (r *Registry) GetAllTools() []*ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]*ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.builtins[name].Tool.Definition)
	}
	return defs
}

// Access implements auth.Classifier.
func (r *Registry) Access(op string) (auth.Access, bool) {
	tool := r.GetBuiltinTool(op)
	if tool == nil {
		return auth.AccessProtected, false
	}
	return tool.Definition.Access, true
}

// BuiltinPackInfo contains information about a registered builtin pack for display.
type BuiltinPackInfo struct {
	ID    string
	Tools []*BuiltinTool
}

// ListBuiltinPacks returns the registered packs in no particular order.
func (r *Registry) ListBuiltinPacks() []BuiltinPackInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]BuiltinPackInfo, 0, len(r.packs))
	for _, pack := range r.packs {
		infos = append(infos, BuiltinPackInfo{ID: pack.ID, Tools: pack.Tools})
	}
	return infos
}
