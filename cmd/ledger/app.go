package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"ledger/internal/backend"
	"ledger/internal/core"
	"ledger/internal/log"
)

// Command is a menu entry.
type Command int

const (
	CmdAddExpense Command = iota + 1
	CmdViewExpenses
	CmdDeleteExpense
	CmdViewAllExpenses
	CmdExit
)

type command struct {
	label string
	run   func(a *app, ctx context.Context) error
}

// errExit ends the session loop.
var errExit = errors.New("exit")

var commands = map[Command]command{
	CmdAddExpense:      {"Add Expense", (*app).addExpense},
	CmdViewExpenses:    {"View Your Expenses", (*app).viewExpenses},
	CmdDeleteExpense:   {"Delete a Row", (*app).deleteExpense},
	CmdViewAllExpenses: {"View All Users' Expenses", (*app).viewAllExpenses},
	CmdExit:            {"Exit", (*app).exit},
}

var menuOrder = []Command{CmdAddExpense, CmdViewExpenses, CmdDeleteExpense, CmdViewAllExpenses, CmdExit}

const clearScreen = "\033[H\033[2J"

type app struct {
	ledger      backend.Ledger
	in          *bufio.Scanner
	out         io.Writer
	logger      *log.Logger
	interactive bool

	session core.Login
}

func newApp(ledger backend.Ledger, in io.Reader, out io.Writer, logger *log.Logger, interactive bool) *app {
	return &app{
		ledger:      ledger,
		in:          bufio.NewScanner(in),
		out:         out,
		logger:      logger,
		interactive: interactive,
	}
}

// run logs in and serves the menu until Exit or end of input.
func (a *app) run(ctx context.Context, username string) error {
	if a.interactive {
		fmt.Fprint(a.out, clearScreen)
	}

	if err := a.login(ctx, username); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	ctx = log.NewContext(ctx, a.logger.With(log.FieldUsername, a.session.Username))

	for {
		a.printMenu()
		line, err := a.prompt("Input: ")
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		n, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil {
			fmt.Fprintln(a.out, "Please enter a valid number.")
			continue
		}
		cmd, ok := commands[Command(n)]
		if !ok {
			fmt.Fprintln(a.out, "Invalid option. Try again.")
			continue
		}

		switch err := cmd.run(a, ctx); {
		case err == nil:
		case errors.Is(err, errExit), errors.Is(err, io.EOF):
			return nil
		case core.IsStorage(err):
			log.FromContext(ctx).ErrorContext(ctx, "Ledger operation failed", log.NewFields().
				WithError(err).
				WithErrorType(log.ErrorTypeDatabase).
				WithUser(a.session.UserID).
				ToSlice()...)
			fmt.Fprintf(a.out, "Error: %v\n", err)
		default:
			return err
		}
	}
}

func (a *app) login(ctx context.Context, username string) error {
	fromFlag := username != ""
	for {
		if !fromFlag {
			var err error
			if username, err = a.prompt("Enter your username: "); err != nil {
				return err
			}
		}

		login, err := a.ledger.Login(ctx, username)
		if core.IsValidation(err) && !fromFlag {
			fmt.Fprintln(a.out, "Username cannot be empty.")
			continue
		}
		if err != nil {
			return err
		}

		a.session = login
		if login.IsNew {
			fmt.Fprintf(a.out, "New user '%s' registered.\n", login.Username)
		} else {
			fmt.Fprintf(a.out, "Welcome back, %s!\n", login.Username)
		}
		return nil
	}
}

func (a *app) printMenu() {
	fmt.Fprintln(a.out)
	for _, c := range menuOrder {
		fmt.Fprintf(a.out, "%d. %s\n", c, commands[c].label)
	}
}

// prompt prints p and reads one line. It returns io.EOF at end of input.
func (a *app) prompt(p string) (string, error) {
	fmt.Fprint(a.out, p)
	if !a.in.Scan() {
		fmt.Fprintln(a.out)
		if err := a.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return a.in.Text(), nil
}

func (a *app) addExpense(ctx context.Context) error {
	description, err := a.prompt("Enter the expense: ")
	if err != nil {
		return err
	}

	rawAmount, err := a.prompt("Enter the amount spent: ")
	if err != nil {
		return err
	}
	amount, err := core.ParseAmount(rawAmount)
	if err != nil {
		fmt.Fprintln(a.out, "Please enter a valid amount.")
		return nil
	}

	rawDate, err := a.prompt("Enter the date (YYYY-MM-DD, blank for today): ")
	if err != nil {
		return err
	}
	var date core.Date
	if strings.TrimSpace(rawDate) != "" {
		if date, err = core.ParseDate(rawDate); err != nil {
			fmt.Fprintln(a.out, "Please enter the date as YYYY-MM-DD.")
			return nil
		}
	}

	e, err := a.ledger.AddExpense(ctx, core.NewExpense{
		UserID:      a.session.UserID,
		Date:        date,
		Description: strings.TrimSpace(description),
		Amount:      amount,
	})
	if core.IsValidation(err) || core.IsNotFound(err) {
		fmt.Fprintf(a.out, "Expense not added: %v\n", err)
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Expense added. Running total: %s\n", core.FormatAmount(e.RunningTotal))
	return nil
}

func (a *app) viewExpenses(ctx context.Context) error {
	expenses, err := a.ledger.ListExpenses(ctx, a.session.UserID)
	if err != nil {
		return err
	}
	if len(expenses) == 0 {
		fmt.Fprintln(a.out, "No expenses found for this user.")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDate\tExpense\tAmount\tTotal")
	for _, e := range expenses {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			e.ID, e.Date, e.Description, core.FormatAmount(e.Amount), core.FormatAmount(e.RunningTotal))
	}
	return tw.Flush()
}

func (a *app) deleteExpense(ctx context.Context) error {
	raw, err := a.prompt("Enter the ID of the expense to delete: ")
	if err != nil {
		return err
	}
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		fmt.Fprintln(a.out, "Please enter a valid number.")
		return nil
	}

	res, err := a.ledger.DeleteExpense(ctx, a.session.UserID, id)
	if core.IsNotFound(err) {
		fmt.Fprintln(a.out, "Expense not found.")
		return nil
	}
	if err != nil {
		return err
	}

	log.FromContext(ctx).DebugContext(ctx, "Expense deleted from terminal",
		log.FieldExpenseID, res.ExpenseID,
		log.FieldRecomputed, res.Recomputed)
	fmt.Fprintln(a.out, "Expense deleted and totals recalculated.")
	return nil
}

func (a *app) viewAllExpenses(ctx context.Context) error {
	rows, err := a.ledger.ListAllExpenses(ctx)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Fprintln(a.out, "No expenses found.")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Expense ID\tUsername\tDate\tExpense\tAmount\tTotal")
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Username, r.Date, r.Description, core.FormatAmount(r.Amount), core.FormatAmount(r.RunningTotal))
	}
	return tw.Flush()
}

func (a *app) exit(context.Context) error {
	fmt.Fprintln(a.out, "Goodbye!")
	return errExit
}
