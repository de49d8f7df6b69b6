package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func runCmd() *cobra.Command {
	sim := defaultSimulation()
	cmd := &cobra.Command{
		Use:   "run",
		Short: "deliver simulated lossy traffic and report what the subscriber observed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()

			r, err := simulate(cmd.Context(), module(logger, conf, "sim"), conf, sim)
			if err != nil {
				return fmt.Errorf("simulation: %w", err)
			}
			logger.Info("simulation finished", zap.Object("report", r))
			fmt.Fprintln(cmd.OutOrStdout(), r)
			return nil
		},
	}
	cmd.Flags().StringVar(&sim.Stream, "stream", sim.Stream, "stream id")
	cmd.Flags().Uint32Var(&sim.Partition, "partition", sim.Partition, "stream partition")
	cmd.Flags().IntVar(&sim.Publishers, "publishers", sim.Publishers, "number of publishers")
	cmd.Flags().IntVar(&sim.Messages, "messages", sim.Messages, "messages per publisher")
	cmd.Flags().Float64Var(&sim.Loss, "loss", sim.Loss, "probability to lose a message")
	cmd.Flags().Float64Var(&sim.Duplicate, "duplicate", sim.Duplicate, "probability to deliver a message twice")
	cmd.Flags().Float64Var(&sim.Reorder, "reorder", sim.Reorder, "probability to swap a message with the next one")
	cmd.Flags().Float64Var(&sim.StorageLoss, "storage-loss", sim.StorageLoss,
		"probability that the storage node lacks a message")
	cmd.Flags().Uint64Var(&sim.Seed, "seed", sim.Seed, "random seed")
	return cmd
}
