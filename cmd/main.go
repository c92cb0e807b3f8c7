/*
Copyright 2024 Authflow Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"fmt"
	"log"
	"os"

	"github.com/netbankhq/authflow"
	"github.com/netbankhq/authflow/config"
	"github.com/netbankhq/authflow/internal/cache"
	"github.com/netbankhq/authflow/internal/notification"
	"github.com/netbankhq/authflow/ledger"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Authflow wraps the root Cobra command of the CLI.
type Authflow struct {
	cmd *cobra.Command
}

// appInstance holds the runtime engine and its configuration, shared by
// the subcommands.
type appInstance struct {
	engine *authflow.Authflow
	cnf    *config.Configuration
}

// recoverPanic logs any panic during execution and exits non-zero.
func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads the configuration and builds the flow engine before any
// command runs.
func preRun(app *appInstance) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig("authflow.json")
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		engine, err := setupEngine()
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}

		app.engine = engine
		app.cnf = cnf
		return nil
	}
}

// setupEngine wires the ledger client and redis cache into a flow engine.
func setupEngine() (*authflow.Authflow, error) {
	client, err := ledger.NewClient()
	if err != nil {
		return nil, fmt.Errorf("error creating ledger client: %v", err)
	}

	c, err := cache.NewCache()
	if err != nil {
		return nil, fmt.Errorf("error connecting cache: %v", err)
	}

	return authflow.NewAuthflow(client, c), nil
}

// NewCLI builds the command-line interface with its subcommands.
func NewCLI() *Authflow {
	var configFile string
	app := &appInstance{}

	var rootCmd = &cobra.Command{
		Use:   "authflow",
		Short: "Transaction authorization engine for the netbank web client",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./authflow.json", "Configuration file for authflow")
	rootCmd.PersistentPreRunE = preRun(app)

	rootCmd.AddCommand(serverCommands(app))

	return &Authflow{cmd: rootCmd}
}

func (w Authflow) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
