// showcfg prints the fully resolved configuration as TOML, after defaults,
// file values and environment overrides have been applied. Debug tool.
package main

import (
	"fmt"
	"os"

	"github.com/MahanRahmati/lumine/internal/config"

	"github.com/pelletier/go-toml/v2"
)

func main() {
	path := ""
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	cfg, err := config.Load(path)
	if err != nil {
		panic(err)
	}
	out, err := toml.Marshal(cfg)
	if err != nil {
		panic(err)
	}
	if cfg.ConfigPath != "" {
		fmt.Printf("# resolved from %s\n", cfg.ConfigPath)
	}
	_, _ = os.Stdout.Write(out)
}
