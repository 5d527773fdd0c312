package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rogpeppe/go-internal/testscript"
)

func TestMain(m *testing.M) {
	testscript.Main(m, map[string]func(){
		"todosync": main,
	})
}

func TestScripts(t *testing.T) {
	testscript.Run(t, testscript.Params{
		Dir: "testdata/script",
		Setup: func(env *testscript.Env) error {
			home := filepath.Join(env.WorkDir, "home")
			if err := os.MkdirAll(home, 0o755); err != nil {
				return err
			}
			env.Setenv("HOME", home)
			env.Setenv("TODOSYNC_REMOTE_BACKEND", "memory")
			env.Setenv("TODOSYNC_LOG_QUIET", "true")
			env.Setenv("TODOSYNC_DATA_DIR", filepath.Join(env.WorkDir, "data"))
			return nil
		},
	})
}
