package app

import (
	"context"
	"os"
	"path/filepath"

	"github.com/dokzlo13/lightdeck/internal/config"
	luart "github.com/dokzlo13/lightdeck/internal/lua"
	"github.com/dokzlo13/lightdeck/internal/lua/modules"
	"github.com/dokzlo13/lightdeck/internal/storage/kv"
)

// LuaService wraps the macro runtime.
type LuaService struct {
	cfg        *config.Config
	configPath string
	Runtime    *luart.Runtime
}

// NewLuaService creates a new LuaService.
func NewLuaService(cfg *config.Config, configPath string, p modules.Panel, kvManager *kv.Manager) *LuaService {
	return &LuaService{
		cfg:        cfg,
		configPath: configPath,
		Runtime:    luart.NewRuntime(p, kvManager),
	}
}

// LoadScript loads the macro script, resolving a relative path against the
// config file's directory when it does not exist as given. Must be called
// before Start.
func (s *LuaService) LoadScript() error {
	path := s.cfg.Script
	if !filepath.IsAbs(path) && s.configPath != "" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			path = filepath.Join(filepath.Dir(s.configPath), path)
		}
	}
	return s.Runtime.LoadScript(path)
}

// Start begins the Lua worker goroutine.
func (s *LuaService) Start(ctx context.Context) {
	go s.Runtime.Run(ctx)
}

// Close closes the Lua runtime.
func (s *LuaService) Close() {
	if s.Runtime != nil {
		s.Runtime.Close()
	}
}
