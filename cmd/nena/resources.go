package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/negosyoko/nena/internal/api"
	"github.com/negosyoko/nena/internal/viewstate"
)

// load runs fn as a view: a spinner line while loading, the error line on
// failure, show on success.
func load[T any](ctx context.Context, a *app, what string, fn func(context.Context) (T, error), show func(T)) error {
	if err := a.requireLogin(ctx); err != nil {
		return err
	}
	st := viewstate.Load(ctx, fn, func(s viewstate.State[T]) {
		if s.Status() == viewstate.Loading {
			fmt.Fprintf(a.err, "Loading %s...\n", what)
		}
	})
	if v, ok := st.Value(); ok {
		show(v)
		return nil
	}
	return a.fail(st.Err())
}

// parsePesos turns "1500" or "1,500.50" into centavos.
func parsePesos(s string) (int64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	return int64(math.Round(f * 100)), nil
}

func pesos(centavos int64) string {
	return fmt.Sprintf("PHP %d.%02d", centavos/100, centavos%100)
}

func newLoanCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loan",
		Short: "Loan applications",
	}

	var (
		amount   string
		term     int
		purpose  string
		business string
	)
	apply := &cobra.Command{
		Use:   "apply",
		Short: "Submit a loan application",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			centavos, err := parsePesos(amount)
			if err != nil {
				return a.fail(err)
			}
			req := api.LoanApplicationRequest{
				Amount:       centavos,
				TermMonths:   term,
				Purpose:      purpose,
				BusinessName: business,
			}
			return load(cmd.Context(), a, "loan application", func(ctx context.Context) (api.LoanApplicationResponse, error) {
				return a.client.ApplyLoan(ctx, req)
			}, func(res api.LoanApplicationResponse) {
				fmt.Fprintf(a.out, "✓ %s\nreference: %s\nstatus: %s\n", res.Message, res.ApplicationID, res.Status)
			})
		},
	}
	apply.Flags().StringVar(&amount, "amount", "", "amount in pesos")
	apply.Flags().IntVar(&term, "term", 12, "term in months (1-60)")
	apply.Flags().StringVar(&purpose, "purpose", "", "what the loan is for")
	apply.Flags().StringVar(&business, "business", "", "business name")
	_ = apply.MarkFlagRequired("amount")
	_ = apply.MarkFlagRequired("purpose")

	cmd.AddCommand(apply)
	return cmd
}

func newChatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chat [message]",
		Short: "Ask the assistant; without a message, start a conversation",
		RunE: func(cmd *cobra.Command, args []string) error {
			send := func(msg string) error {
				return load(cmd.Context(), a, "reply", func(ctx context.Context) (api.ChatResponse, error) {
					return a.client.SendChatMessage(ctx, api.ChatRequest{Message: msg})
				}, func(res api.ChatResponse) {
					fmt.Fprintf(a.out, "nena: %s\n", res.Reply)
				})
			}
			if len(args) > 0 {
				return send(strings.Join(args, " "))
			}
			fmt.Fprintln(a.out, "Type a message, or 'exit' to quit.")
			for {
				msg, err := a.prompt("you: ")
				if err != nil || msg == "exit" {
					return nil
				}
				if msg == "" {
					continue
				}
				// keep the conversation going after a failed reply
				_ = send(msg)
			}
		},
	}
}

func newAnalyticsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "analytics",
		Short: "Summarise recorded income",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return load(cmd.Context(), a, "analytics", a.client.FetchAnalytics, func(s api.Analytics) {
				fmt.Fprintf(a.out, "total income: %s\nrecords: %d\naverage: %s\n", pesos(s.TotalIncome), s.RecordCount, pesos(s.AverageAmount))
				w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
				if len(s.Monthly) > 0 {
					fmt.Fprintln(w, "\nMONTH\tTOTAL")
					for _, m := range s.Monthly {
						fmt.Fprintf(w, "%s\t%s\n", m.Month, pesos(m.Total))
					}
				}
				if len(s.TopSources) > 0 {
					fmt.Fprintln(w, "\nSOURCE\tTOTAL\tCOUNT")
					for _, src := range s.TopSources {
						fmt.Fprintf(w, "%s\t%s\t%d\n", src.Source, pesos(src.Total), src.Count)
					}
				}
				w.Flush()
			})
		},
	}
}

func newIncomeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "income",
		Short: "Income records",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List recorded income",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return load(cmd.Context(), a, "income records", a.client.ListIncomeRecords, func(recs []api.IncomeRecord) {
				if len(recs) == 0 {
					fmt.Fprintln(a.out, "No income recorded yet.")
					return
				}
				w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "DATE\tAMOUNT\tSOURCE\tNOTES")
				for _, r := range recs {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.ReceivedOn, pesos(r.Amount), r.Source, r.Notes)
				}
				w.Flush()
			})
		},
	}

	var amount, source, date, notes string
	add := &cobra.Command{
		Use:   "add",
		Short: "Record income",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			centavos, err := parsePesos(amount)
			if err != nil {
				return a.fail(err)
			}
			req := api.CreateIncomeRecordRequest{Amount: centavos, Source: source, ReceivedOn: date, Notes: notes}
			return load(cmd.Context(), a, "income record", func(ctx context.Context) (api.IncomeRecord, error) {
				return a.client.CreateIncomeRecord(ctx, req)
			}, func(r api.IncomeRecord) {
				fmt.Fprintf(a.out, "✓ recorded %s from %s on %s\n", pesos(r.Amount), r.Source, r.ReceivedOn)
			})
		},
	}
	add.Flags().StringVar(&amount, "amount", "", "amount in pesos")
	add.Flags().StringVar(&source, "source", "", "where the income came from")
	add.Flags().StringVar(&date, "date", "", "date received, YYYY-MM-DD (default today)")
	add.Flags().StringVar(&notes, "notes", "", "optional notes")
	_ = add.MarkFlagRequired("amount")
	_ = add.MarkFlagRequired("source")

	cmd.AddCommand(list, add)
	return cmd
}

func newDocumentsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "documents",
		Short: "Uploaded documents",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List uploaded documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return load(cmd.Context(), a, "documents", a.client.ListDocuments, func(docs []api.Document) {
				if len(docs) == 0 {
					fmt.Fprintln(a.out, "No documents uploaded yet.")
					return
				}
				w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "LABEL\tFILE\tTYPE\tSIZE\tUPLOADED")
				for _, d := range docs {
					fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", d.Label, d.Filename, d.ContentType, d.Size, d.UploadedAt.Local().Format("2006-01-02 15:04"))
				}
				w.Flush()
			})
		},
	}

	var label string
	upload := &cobra.Command{
		Use:   "upload FILE",
		Short: "Upload an image of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[0])
			if err != nil {
				return a.fail(err)
			}
			return load(cmd.Context(), a, "upload", func(ctx context.Context) (api.Document, error) {
				return a.client.UploadDocument(ctx, label, args[0], content)
			}, func(d api.Document) {
				fmt.Fprintf(a.out, "✓ uploaded %s as %q (%s, %d bytes)\n", d.Filename, d.Label, d.ContentType, d.Size)
			})
		},
	}
	upload.Flags().StringVar(&label, "label", "", "what the document is, e.g. \"Business permit\"")
	_ = upload.MarkFlagRequired("label")

	cmd.AddCommand(list, upload)
	return cmd
}
