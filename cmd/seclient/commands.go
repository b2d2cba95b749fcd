package main

import (
	"context"
	"fmt"
	"image/png"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vlsemenov/samaraenergo/internal/client"
	"github.com/vlsemenov/samaraenergo/internal/portal"
	"github.com/vlsemenov/samaraenergo/internal/qr"
)

type command func(ctx context.Context, c *client.Client, locator qr.Locator, args []string) error

var commands = map[string]command{
	"info":     cmdInfo,
	"invoices": cmdInvoices,
	"payments": cmdPayments,
	"report":   cmdReport,
	"submit":   cmdSubmit,
	"qr":       cmdQR,
}

// runCommand wires the chosen command into the fx lifecycle: it runs in
// a goroutine after start and shuts the app down when done, carrying a
// non-zero exit code on failure.
func runCommand(name string, args []string) func(fx.Lifecycle, fx.Shutdowner, *client.Client, qr.Locator, *zap.Logger) {
	return func(lc fx.Lifecycle, shutdowner fx.Shutdowner, c *client.Client, locator qr.Locator, logger *zap.Logger) {
		ctx, cancel := context.WithCancel(context.Background())

		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				go func() {
					code := 0
					if err := commands[name](ctx, c, locator, args); err != nil {
						logger.Error("command failed", zap.String("command", name), zap.Error(err))
						code = 1
					}
					shutdowner.Shutdown(fx.ExitCode(code))
				}()
				return nil
			},
			OnStop: func(context.Context) error {
				cancel()
				return nil
			},
		})
	}
}

func cmdInfo(ctx context.Context, c *client.Client, _ qr.Locator, _ []string) error {
	accounts, err := c.Accounts(ctx,
		client.ExpandAddress,
		client.ExpandRegisters,
		client.ExpandConsumption,
	)
	if err != nil {
		return err
	}

	for _, acc := range accounts {
		fmt.Printf("Account %s  %s\n", acc.AccountID, acc.FullName)
		if acc.StandardAccountAddress != nil {
			fmt.Printf("  %s\n", acc.StandardAccountAddress.AddressInfo.ShortForm())
		}
		for _, ca := range acc.ContractAccounts {
			fmt.Printf("  Contract account %s (%s), tariff %s\n", ca.ContractAccountID, ca.Ttypbez, ca.Preisbtr1)
			for _, contract := range ca.Contracts {
				for _, device := range contract.Devices {
					fmt.Printf("    Device %s  serial %s\n", device.DeviceID, device.SerialNumber)
					for _, reg := range device.RegistersToRead {
						fmt.Printf("      register %s  %s  previous %s (%s)\n",
							reg.RegisterID, reg.Zwarttxt, reg.PreviousMeterReadingResult, formatDate(reg.PreviousMeterReadingDate))
					}
				}
			}
		}
	}
	return nil
}

func cmdInvoices(ctx context.Context, c *client.Client, _ qr.Locator, args []string) error {
	if len(args) != 1 {
		return &portal.ArgumentError{Message: "invoices expects one account id"}
	}
	invoices, err := c.Invoices(ctx, args[0])
	if err != nil {
		return err
	}
	printInvoices(invoices)
	return nil
}

func cmdPayments(ctx context.Context, c *client.Client, _ qr.Locator, args []string) error {
	if len(args) != 1 {
		return &portal.ArgumentError{Message: "payments expects one account id"}
	}
	payments, err := c.Payments(ctx, args[0])
	if err != nil {
		return err
	}
	printPayments(payments)
	return nil
}

// cmdReport fetches invoices and payments concurrently
func cmdReport(ctx context.Context, c *client.Client, _ qr.Locator, args []string) error {
	if len(args) != 1 {
		return &portal.ArgumentError{Message: "report expects one account id"}
	}
	accountID := args[0]

	var invoices []portal.Invoice
	var payments []portal.PaymentDocument

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		invoices, err = c.Invoices(gctx, accountID)
		return err
	})
	g.Go(func() error {
		var err error
		payments, err = c.Payments(gctx, accountID)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	printInvoices(invoices)
	fmt.Println()
	printPayments(payments)
	return nil
}

func cmdSubmit(ctx context.Context, c *client.Client, _ qr.Locator, args []string) error {
	if len(args) < 2 || len(args) > 4 {
		return &portal.ArgumentError{Message: "submit expects a device id and one to three readings"}
	}
	deviceID := args[0]

	values := make([]decimal.Decimal, 0, len(args)-1)
	for _, raw := range args[1:] {
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return &portal.ArgumentError{Message: fmt.Sprintf("reading %q is not a number", raw)}
		}
		values = append(values, v)
	}

	confirmed, err := c.SubmitReadings(ctx, deviceID, time.Time{}, values...)
	if err != nil {
		return err
	}

	status := "pending verification"
	if confirmed.Prkrasch {
		status = "accepted for billing"
	}
	fmt.Printf("Reading %s: register %s = %s at %s, %s\n",
		confirmed.MeterReadingResultID, confirmed.RegisterID, confirmed.ReadingResult,
		formatDate(confirmed.ReadingDateTime), status)
	return nil
}

func cmdQR(ctx context.Context, c *client.Client, locator qr.Locator, args []string) error {
	if len(args) != 2 {
		return &portal.ArgumentError{Message: "qr expects an invoice id and an output path"}
	}
	invoiceID, outPath := args[0], args[1]

	doc, err := c.InvoicePDF(ctx, invoiceID)
	if err != nil {
		return err
	}
	img, err := locator.FindQR(doc)
	if err != nil {
		return err
	}

	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer out.Close()
	if err := png.Encode(out, img); err != nil {
		return err
	}
	fmt.Printf("QR image written to %s\n", outPath)
	return nil
}

func printInvoices(invoices []portal.Invoice) {
	fmt.Printf("Invoices (%d):\n", len(invoices))
	for _, inv := range invoices {
		paid := " "
		if inv.InvoiceStatusID == "2" {
			paid = "x"
		}
		fmt.Printf("  [%s] %s  %s  %s rub\n", paid, inv.InvoiceID, formatDate(inv.InvoiceDate), inv.AmountDue)
	}
}

func printPayments(payments []portal.PaymentDocument) {
	fmt.Printf("Payments (%d):\n", len(payments))
	for _, p := range payments {
		fmt.Printf("  %s  %s  %s rub  %s\n", p.PaymentDocumentID, formatDate(p.ExecutionDate), p.Amount, p.PaymentMethodDescription)
	}
}

func formatDate[T interface{ Valid() bool; Time() time.Time }](d T) string {
	if !d.Valid() {
		return "-"
	}
	return d.Time().Format("2006-01-02")
}
