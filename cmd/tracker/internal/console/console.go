package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shubham-shewale/stock-tracker/cmd/tracker/internal/tracker"
	"github.com/shubham-shewale/stock-tracker/pkg/models"
)

// Registry is what the operator can read and change.
type Registry interface {
	Track(raw string) (models.Symbol, error)
	Untrack(raw string) (models.Symbol, error)
	SetAlert(raw string, price float64) (models.Symbol, error)
	Alert(raw string) (float64, bool)
	List() iter.Seq[models.Symbol]
	Snapshot(raw string) ([]float64, error)
}

const menu = `
Stock Market Tracker
1. Add Stock
2. Remove Stock
3. View Stocks
4. Set Price Alert
5. Exit`

// Console is the interactive command surface. It also renders scheduler reports,
// so every write to out goes through one lock.
type Console struct {
	registry Registry
	mu       sync.Mutex
	out      io.Writer
}

func New(registry Registry, out io.Writer) *Console {
	return &Console{registry: registry, out: out}
}

// Run reads commands until "exit", end of input or ctx cancellation.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	next := func(prompt string) (string, bool) {
		if prompt != "" {
			c.printf("%s", prompt)
		}
		select {
		case <-ctx.Done():
			return "", false
		case line, ok := <-lines:
			return strings.TrimSpace(line), ok
		}
	}

	for {
		c.println(menu)
		line, ok := next("Choose an option: ")
		if !ok {
			return nil
		}

		var status string
		var exit bool
		switch line {
		case "1":
			sym, ok := next("Enter stock symbol (e.g., AAPL): ")
			if !ok {
				return nil
			}
			status = c.Track(sym)
		case "2":
			sym, ok := next("Enter stock symbol to remove: ")
			if !ok {
				return nil
			}
			status = c.Untrack(sym)
		case "3":
			status = c.View()
		case "4":
			sym, ok := next("Enter stock symbol for alert: ")
			if !ok {
				return nil
			}
			price, ok := next("Enter alert price: ")
			if !ok {
				return nil
			}
			status = c.setAlertRaw(sym, price)
		case "5":
			status, exit = "Exiting...", true
		default:
			status, exit = c.Execute(line)
		}

		c.println(status)
		if exit {
			return nil
		}
	}
}

// Execute runs a word command ("track AAPL", "alert AAPL 150", ...) and returns its status.
func (c *Console) Execute(line string) (status string, exit bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "Invalid option.", false
	}

	args := fields[1:]
	switch strings.ToLower(fields[0]) {
	case "track", "add":
		if len(args) != 1 {
			return "usage: track <symbol>", false
		}
		return c.Track(args[0]), false
	case "untrack", "remove":
		if len(args) != 1 {
			return "usage: untrack <symbol>", false
		}
		return c.Untrack(args[0]), false
	case "list", "view":
		return c.View(), false
	case "alert", "setalert":
		if len(args) != 2 {
			return "usage: alert <symbol> <price>", false
		}
		return c.setAlertRaw(args[0], args[1]), false
	case "exit", "quit":
		return "Exiting...", true
	}
	return "Invalid option.", false
}

func (c *Console) Track(raw string) string {
	sym, err := c.registry.Track(raw)
	switch {
	case errors.Is(err, tracker.ErrAlreadyTracked):
		return fmt.Sprintf("%s already tracked.", sym)
	case errors.Is(err, tracker.ErrInvalidSymbol):
		return "Symbol cannot be empty."
	case err != nil:
		return fmt.Sprintf("Could not add %s: %v", sym, err)
	}
	return fmt.Sprintf("%s added.", sym)
}

func (c *Console) Untrack(raw string) string {
	sym, err := c.registry.Untrack(raw)
	if err != nil {
		return fmt.Sprintf("%s not found.", sym)
	}
	return fmt.Sprintf("%s removed.", sym)
}

func (c *Console) SetAlert(raw string, price float64) string {
	sym, err := c.registry.SetAlert(raw, price)
	switch {
	case errors.Is(err, tracker.ErrNotTracked):
		return fmt.Sprintf("%s not tracked. Add it first.", sym)
	case errors.Is(err, tracker.ErrInvalidPrice):
		return fmt.Sprintf("Invalid alert price: %v", price)
	case err != nil:
		return fmt.Sprintf("Could not set alert for %s: %v", sym, err)
	}
	return fmt.Sprintf("Alert set for %s at $%.2f", sym, price)
}

func (c *Console) setAlertRaw(sym, rawPrice string) string {
	price, err := strconv.ParseFloat(rawPrice, 64)
	if err != nil {
		return fmt.Sprintf("Invalid alert price: %q", rawPrice)
	}
	return c.SetAlert(sym, price)
}

// View renders every tracked symbol with its latest price and a bar chart of its history.
func (c *Console) View() string {
	var b strings.Builder
	n := 0
	for sym := range c.registry.List() {
		prices, err := c.registry.Snapshot(sym.String())
		if err != nil {
			// untracked since List was taken
			continue
		}
		n++
		fmt.Fprintf(&b, "\n%s:\n", sym)
		if target, ok := c.registry.Alert(sym.String()); ok {
			fmt.Fprintf(&b, "Alert at $%.2f\n", target)
		}
		if len(prices) == 0 {
			b.WriteString("No data yet.\n")
			continue
		}
		fmt.Fprintf(&b, "Latest Price: $%.2f\n", prices[len(prices)-1])
		fmt.Fprintf(&b, "Price History (last %d updates):\n", len(prices))
		for _, p := range prices {
			fmt.Fprintf(&b, "%.2f %s\n", p, bar(p))
		}
	}
	if n == 0 {
		return "No stocks tracked."
	}
	return strings.TrimRight(b.String(), "\n")
}

// bar draws one star per started $10.
func bar(price float64) string {
	if price <= 0 {
		return ""
	}
	stars := int(price / 10)
	if float64(stars)*10 < price {
		stars++
	}
	return strings.Repeat("*", stars)
}

// Updated prints a recorded quote, as reported by the scheduler.
func (c *Console) Updated(q models.Quote, at time.Time) {
	c.printf("Updated %s: $%.2f at %s\n", q.Symbol, q.Price, at.Format("15:04:05"))
}

// FetchFailed prints a failed poll, as reported by the scheduler.
func (c *Console) FetchFailed(err error) {
	c.printf("Error fetching stock prices: %v\n", err)
}

func (c *Console) println(s string) {
	c.printf("%s\n", s)
}

func (c *Console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

// Writer exposes the serialized output for other sinks that print to the same terminal.
func (c *Console) Writer() io.Writer {
	return writerFunc(func(p []byte) (int, error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.out.Write(p)
	})
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }
