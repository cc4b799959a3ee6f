package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/invoicedesk/invoicedesk/internal/ingestion"
	"github.com/invoicedesk/invoicedesk/internal/models"
	"github.com/invoicedesk/invoicedesk/internal/review"
	"github.com/invoicedesk/invoicedesk/internal/session"
	"github.com/invoicedesk/invoicedesk/pkg/utils"
)

func main() {
	serverURL := flag.String("server", "http://localhost:8080", "server base URL")
	statePath := flag.String("state", "data/session.json", "session state file")
	batchID := flag.String("batch", "", "batch id to pull extraction results from")
	timeout := flag.Duration("timeout", 2*time.Minute, "request timeout")
	flag.Parse()

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      "warn",
		OutputPath: "stderr",
		Format:     "console",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	store, err := session.NewStore(*statePath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	client := ingestion.NewClient(*serverURL, *timeout, logger)
	ctx := context.Background()

	state, err := store.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// A batch id refreshes the pending set from the server; otherwise the
	// previously saved session is resumed.
	if *batchID != "" {
		batch, err := client.Status(ctx, *batchID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		if batch.Status != models.BatchStatusCompleted && batch.Status != models.BatchStatusFailed {
			fmt.Fprintf(os.Stderr, "batch %s is still %s, try again later\n", *batchID, batch.Status)
			os.Exit(1)
		}

		state.PendingInvoices = state.PendingInvoices[:0]
		for _, file := range batch.Files {
			if file.Invoice != nil {
				state.PendingInvoices = append(state.PendingInvoices, *file.Invoice)
			} else {
				fmt.Fprintf(os.Stderr, "skipping %s: %s\n", file.Filename, file.Error)
			}
		}
		if err := store.Save(state); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}

	if len(state.PendingInvoices) == 0 {
		fmt.Fprintln(os.Stderr, "nothing to review")
		return
	}

	sess, err := review.NewSession(state.PendingInvoices, client, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	runLoop(ctx, sess, store, state)
}

func runLoop(ctx context.Context, sess *review.Session, store *session.Store, state *session.State) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("commands: show, seek <n>, set <field> <value>, save, quit")

	// The session shares its backing array with state.PendingInvoices, so
	// edits flow into the saved state; committed slots are tracked here to
	// drop them from the resumable file.
	all := state.PendingInvoices
	committed := make(map[int]bool, len(all))

	printCurrent(sess)
	for !sess.Closed() {
		fmt.Printf("[%d/%d]> ", sess.Index()+1, sess.Len())
		if !scanner.Scan() {
			break
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "show":
			printCurrent(sess)

		case "seek":
			if len(fields) != 2 {
				fmt.Println("usage: seek <n>")
				continue
			}
			n, err := strconv.Atoi(fields[1])
			if err != nil {
				fmt.Println("usage: seek <n>")
				continue
			}
			if err := sess.Seek(n - 1); err != nil {
				fmt.Printf("error: %v\n", err)
				continue
			}
			printCurrent(sess)

		case "set":
			if len(fields) < 3 {
				fmt.Println("usage: set <field> <value>")
				continue
			}
			if err := applyEdit(sess, fields[1], strings.Join(fields[2:], " ")); err != nil {
				fmt.Printf("error: %v\n", err)
			}

		case "save":
			idx := sess.Index()
			if err := sess.Commit(ctx); err != nil {
				fmt.Printf("save failed, fix and retry: %v\n", err)
				continue
			}
			committed[idx] = true

			remaining := make([]models.Invoice, 0, len(all))
			for i := range all {
				if !committed[i] {
					remaining = append(remaining, all[i])
				}
			}
			state.PendingInvoices = remaining
			if err := store.Save(state); err != nil {
				fmt.Printf("warning: %v\n", err)
			}
			if !sess.Closed() {
				printCurrent(sess)
			}

		case "quit":
			fmt.Println("session saved, resume later with the same -state file")
			return

		default:
			fmt.Println("commands: show, seek <n>, set <field> <value>, save, quit")
		}
	}

	if sess.Closed() {
		if err := store.Clear(); err != nil {
			fmt.Printf("warning: %v\n", err)
		}
		fmt.Println("all invoices reviewed and saved")
	}
}

func printCurrent(sess *review.Session) {
	inv, err := sess.Current()
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}

	fmt.Printf("invoice_number: %s\n", inv.Invoice.InvoiceNumber)
	fmt.Printf("date:           %s    due: %s\n", inv.Invoice.Date, inv.Invoice.DueDate)
	fmt.Printf("type:           %s    status: %s\n", inv.Invoice.Type, inv.Invoice.Status)
	fmt.Printf("supplier:       %s\n", inv.Supplier.Name)
	fmt.Printf("customer:       %s\n", inv.Customer.Name)
	fmt.Printf("total: %.2f  vat: %.2f\n", inv.Invoice.TotalAmount, inv.Invoice.VATAmount)
	for i, li := range inv.Items {
		fmt.Printf("  %d. [%s] %s  qty %.2f x %.2f = %.2f\n",
			i+1, li.ItemCode, li.ItemName, li.Quantity, li.UnitPrice, li.TotalPrice)
	}
}

// applyEdit maps a field name onto the current record. Unknown fields are an
// error; values are taken verbatim, matching the permissive save semantics.
func applyEdit(sess *review.Session, field, value string) error {
	return sess.Edit(func(inv *models.Invoice) {
		switch field {
		case "invoice_number":
			inv.Invoice.InvoiceNumber = value
		case "date":
			inv.Invoice.Date = value
		case "due_date":
			inv.Invoice.DueDate = value
		case "type":
			inv.Invoice.Type = value
		case "status":
			inv.Invoice.Status = value
		case "notes":
			inv.Invoice.Notes = value
		case "supplier":
			inv.Supplier.Name = value
		case "customer":
			inv.Customer.Name = value
		case "total_amount":
			if f, err := strconv.ParseFloat(value, 64); err == nil {
				inv.Invoice.TotalAmount = f
			}
		case "vat_amount":
			if f, err := strconv.ParseFloat(value, 64); err == nil {
				inv.Invoice.VATAmount = f
			}
		default:
			fmt.Printf("unknown field %q\n", field)
		}
	})
}
