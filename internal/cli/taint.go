package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var taintCmd = &cobra.Command{
	Use:   "taint <address>",
	Short: "Mark a resource for recreation",
	Long: `Marks a resource as tainted, forcing it to be destroyed and recreated
on the next apply.`,
	Args: cobra.ExactArgs(1),
	RunE: runTaint,
}

var untaintCmd = &cobra.Command{
	Use:   "untaint <address>",
	Short: "Remove the taint mark from a resource",
	Long:  `Removes the taint mark from a resource, cancelling forced recreation.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runUntaint,
}

func runTaint(cmd *cobra.Command, args []string) error {
	return setTaint(cmd, args[0], true)
}

func runUntaint(cmd *cobra.Command, args []string) error {
	return setTaint(cmd, args[0], false)
}

func setTaint(cmd *cobra.Command, target string, tainted bool) error {
	backend, err := openProjectBackend()
	if err != nil {
		return err
	}
	if err := backend.Lock(); err != nil {
		return err
	}
	defer backend.Unlock()

	ctx := cmd.Context()
	s, err := backend.Read(ctx)
	if err != nil {
		return fmt.Errorf("failed to read state: %w", err)
	}

	res, ok := s.Resource(target)
	if !ok {
		return fmt.Errorf("resource %s not found in state", target)
	}
	if res.Tainted == tainted {
		if tainted {
			fmt.Printf("Resource %s is already tainted.\n", target)
		} else {
			fmt.Printf("Resource %s is not tainted.\n", target)
		}
		return nil
	}

	res.Tainted = tainted
	s.Serial++
	if err := backend.Write(ctx, s); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}

	if tainted {
		_ = writeAuditLog(".", AuditEntry{
			Operation: "taint",
			Changes:   []AuditChange{{Address: target, Action: "TAINT"}},
		})
		fmt.Printf("Resource %s has been tainted. It will be recreated on next apply.\n", target)
	} else {
		_ = writeAuditLog(".", AuditEntry{
			Operation: "untaint",
			Changes:   []AuditChange{{Address: target, Action: "UNTAINT"}},
		})
		fmt.Printf("Resource %s has been untainted.\n", target)
	}
	return nil
}
