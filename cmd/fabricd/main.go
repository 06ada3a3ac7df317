// Copyright 2026 The Fabric Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command fabricd is a thin example hosting binary for the fabric
// messaging core. It stands up a fabric.Mesh from flag/TOML-sourced
// configuration, logs its event channel through logrus, and otherwise
// gets out of the way: the event bus topic tree, socket servers,
// ACL/registry storage and TLS/auth named in spec.md §1's Non-goals are
// not implemented here either.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/agentmesh/fabric"
	"github.com/agentmesh/fabric/clock"
	"github.com/agentmesh/fabric/recovery"
	"github.com/agentmesh/fabric/store"
)

// Exit codes follow BSD sysexits.h, per spec.md §6.
const (
	exitOK       = 0
	exitUsage    = 64
	exitSoftware = 70
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "fabricd",
	Short: "In-process agent messaging fabric hosting daemon",
	Long: `fabricd stands up a fabric.Mesh with a priority queue, circuit
breaker, retry engine, dead-letter queue, poison detector and recovery
orchestrator, and logs its event stream to stderr until interrupted.

It is an example hosting binary, not the fabric library itself: embed
github.com/agentmesh/fabric directly for in-process use.`,
	RunE:          run,
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a TOML config file (optional)")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		code := exitSoftware
		if isUsageError(err) {
			code = exitUsage
		}
		fmt.Fprintf(os.Stderr, "fabricd: %s\n", err)
		os.Exit(code)
	}
	os.Exit(exitOK)
}

// usageError marks a config/flag problem, for isUsageError to map to
// exitUsage instead of exitSoftware.
type usageError struct{ error }

func isUsageError(err error) bool {
	_, ok := err.(usageError)
	return ok
}

func run(cmd *cobra.Command, args []string) error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return usageError{fmt.Errorf("invalid --log-level %q: %w", logLevel, err)}
	}
	log := logrus.New()
	log.SetLevel(level)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := loadConfig(configPath)
	if err != nil {
		return usageError{err}
	}

	events := make(chan fabric.Event, cfg.EventBufferSize)
	mesh, err := fabric.New(cfg, fabric.Deps{
		Clock:    clock.NewSystem(),
		Store:    store.NewMemStore(),
		Executor: loggingExecutor{log: log},
		Events:   events,
	})
	if err != nil {
		return fmt.Errorf("constructing mesh: %w", err)
	}
	defer mesh.Shutdown()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.WithFields(logrus.Fields{
		"arena_ring_capacity": cfg.Arena.RingCapacity,
		"arena_slot_width":    cfg.Arena.SlotWidth,
	}).Info("fabricd: mesh started")

	for {
		select {
		case <-ctx.Done():
			log.Info("fabricd: shutting down")
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			logEvent(log, ev)
		}
	}
}

func logEvent(log *logrus.Logger, ev fabric.Event) {
	fields := logrus.Fields{
		"message_id": ev.Message.Id,
		"priority":   ev.Message.Priority.String(),
	}
	switch ev.Kind {
	case fabric.EventExpired:
		log.WithFields(fields).Warn("message expired before delivery")
	case fabric.EventPermanentFailure:
		log.WithFields(fields).Error("message permanently failed")
	case fabric.EventPoisoned:
		log.WithFields(fields).Error("message quarantined as poison")
	case fabric.EventAlert:
		fields["alert_rule"] = ev.Alert().Rule
		fields["alert_message"] = ev.Alert().Message
		log.WithFields(fields).Warn("alert rule fired")
	default:
		log.WithFields(fields).Debug("mesh event")
	}
}

// loggingExecutor is the example hosting binary's recovery.Executor: it
// logs the action instead of actually resetting connections or draining
// queues, since fabricd owns no real downstream transports (spec.md §1's
// Non-goals keep socket servers and transport drivers out of this repo).
type loggingExecutor struct{ log *logrus.Logger }

func (e loggingExecutor) Execute(action recovery.Action) recovery.ExecuteResult {
	e.log.WithFields(logrus.Fields{
		"action_type": action.Type,
		"target":      action.Target,
	}).Info("fabricd: executing recovery action")
	return recovery.ExecuteResult{Succeeded: true}
}
