// Command nmos-registry runs a Registry process: the resource store,
// its garbage collector, and (through core.RegistryServer) the query
// engine and subscription/grain-pump machinery a Registry's HTTP
// handlers call into. Concrete REST routing is out of this module's
// scope (§1).
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nmos-community/nmos-core/cmn"
	"github.com/nmos-community/nmos-core/core"
	"github.com/nmos-community/nmos-core/model"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := cmn.Defaults(cmn.RoleRegistry)
	store := model.NewStore(&cmn.Clock{})

	srv := core.NewRegistryServer(cfg, store)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := srv.Run(ctx, 30*time.Second); err != nil {
		cmn.Errorf("nmos-registry: exited: %v", err)
		return 1
	}
	return 0
}
