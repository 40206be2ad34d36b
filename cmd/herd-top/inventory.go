package main

import (
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nixlim/herd-top/internal/errors"
	"github.com/nixlim/herd-top/internal/inventory"
)

var inventoryCmd = &cobra.Command{
	Use:   "inventory",
	Short: "Submit inventory movements with safe retries",
	Long: `Submit inventory movements for the selected farm.

Each movement is sent with an idempotency key derived from its content. When
a submission gets no response it is saved locally and can be resent with the
same key, so the backend never records it twice.

Examples:
  herd-top --farm 12 inventory submit --type ENTRY --item feed-1 --quantity 2,5
  herd-top inventory pending
  herd-top --farm 12 inventory retry
  herd-top --farm 12 inventory discard`,
}

var movementFlags inventory.Payload

var inventorySubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a new movement",
	RunE:  runInventorySubmit,
}

var inventoryPendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List farms with a submission waiting for retry",
	RunE:  runInventoryPending,
}

var inventoryRetryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Resend the saved submission with its original key",
	RunE:  runInventoryRetry,
}

var inventoryDiscardCmd = &cobra.Command{
	Use:   "discard",
	Short: "Drop the saved submission",
	RunE:  runInventoryDiscard,
}

func init() {
	f := inventorySubmitCmd.Flags()
	f.StringVar(&movementFlags.Type, "type", "", "Movement type: ENTRY, EXIT or ADJUSTMENT")
	f.StringVar(&movementFlags.ItemID, "item", "", "Inventory item ID")
	f.StringVar(&movementFlags.LotID, "lot", "", "Lot ID")
	f.StringVar(&movementFlags.Quantity, "quantity", "", "Quantity (comma or dot decimal)")
	f.StringVar(&movementFlags.AdjustDirection, "direction", "", "INCREASE or DECREASE, for ADJUSTMENT only")
	f.StringVar(&movementFlags.Reason, "reason", "", "Reason")
	f.StringVar(&movementFlags.MovementDate, "date", "", "Movement date (YYYY-MM-DD)")
	_ = inventorySubmitCmd.MarkFlagRequired("type")
	_ = inventorySubmitCmd.MarkFlagRequired("item")
	_ = inventorySubmitCmd.MarkFlagRequired("quantity")

	inventoryCmd.AddCommand(inventorySubmitCmd)
	inventoryCmd.AddCommand(inventoryPendingCmd)
	inventoryCmd.AddCommand(inventoryRetryCmd)
	inventoryCmd.AddCommand(inventoryDiscardCmd)
}

func runInventorySubmit(cmd *cobra.Command, _ []string) error {
	a, err := newApp(flags)
	if err != nil {
		return err
	}
	defer a.Close()

	farmID, err := a.farmID()
	if err != nil {
		return err
	}

	draft := a.newDraft(farmID)
	if snap, ok := draft.Open(); ok {
		if snap.PayloadHash != inventory.PayloadHash(movementFlags) {
			return errors.WithHint(
				errors.Newf("farm %s has a different submission waiting for retry", farmID),
				"run 'herd-top inventory retry' or 'herd-top inventory discard' first")
		}
		fmt.Fprintln(cmd.ErrOrStderr(), "Reusing the key of the saved submission.")
	} else {
		draft.Edit(movementFlags)
	}

	return submitDraft(cmd, draft)
}

func runInventoryRetry(cmd *cobra.Command, _ []string) error {
	a, err := newApp(flags)
	if err != nil {
		return err
	}
	defer a.Close()

	farmID, err := a.farmID()
	if err != nil {
		return err
	}

	draft := a.newDraft(farmID)
	snap, ok := draft.Open()
	if !ok {
		return errors.Newf("no saved submission for farm %s", farmID)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Resending submission from %s with key %s\n",
		humanize.Time(snap.CreatedAt), snap.IdempotencyKey)

	return submitDraft(cmd, draft)
}

func submitDraft(cmd *cobra.Command, draft *inventory.Draft) error {
	ctx, stop := signal.NotifyContext(contextOrBackground(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res := draft.Submit(ctx)
	printResult(cmd.OutOrStdout(), res)
	if res.Outcome.Success() {
		return nil
	}
	err := errors.Newf("movement %s", res.Outcome)
	if res.Retryable {
		err = errors.WithHint(err, "run 'herd-top inventory retry' when the connection is back")
	}
	return err
}

func printResult(w io.Writer, res inventory.Result) {
	fmt.Fprintf(w, "%s (%s)\n", res.Message, res.Outcome)
	if res.Movement != nil && res.Movement.ID != 0 {
		fmt.Fprintf(w, "  movimento:  #%d\n", res.Movement.ID)
		if res.Movement.ResultingBalance != "" {
			fmt.Fprintf(w, "  saldo:      %s\n", res.Movement.ResultingBalance)
		}
	}
	if res.Key != "" {
		fmt.Fprintf(w, "  chave:      %s\n", res.Key)
	}
	for _, fe := range res.FieldErrors {
		fmt.Fprintf(w, "  %s: %s\n", fe.Field, fe.Message)
	}
}

func runInventoryPending(cmd *cobra.Command, _ []string) error {
	a, err := newApp(flags)
	if err != nil {
		return err
	}
	defer a.Close()

	farms, err := a.retries.PendingFarms()
	if err != nil {
		return err
	}
	printPending(cmd.OutOrStdout(), a.retries, farms, time.Now())
	return nil
}

func printPending(w io.Writer, store *inventory.RetryStore, farms []string, now time.Time) {
	if len(farms) == 0 {
		fmt.Fprintln(w, "Nenhum envio pendente.")
		return
	}
	for _, farm := range farms {
		snap, ok := store.Load(farm)
		if !ok {
			continue
		}
		fmt.Fprintf(w, "fazenda %-10s %-10s item %-12s qtd %-8s %s  chave %s\n",
			farm,
			snap.Payload.Type,
			snap.Payload.ItemID,
			snap.Payload.Quantity,
			humanize.RelTime(snap.CreatedAt, now, "ago", "from now"),
			snap.IdempotencyKey,
		)
	}
}

func runInventoryDiscard(cmd *cobra.Command, _ []string) error {
	a, err := newApp(flags)
	if err != nil {
		return err
	}
	defer a.Close()

	farmID, err := a.farmID()
	if err != nil {
		return err
	}
	if err := a.newDraft(farmID).Discard(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Envio pendente da fazenda %s descartado.\n", farmID)
	return nil
}
