package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/Additional-Code/menudesk/internal/entity"
	"github.com/Additional-Code/menudesk/internal/feed"
	"github.com/Additional-Code/menudesk/pkg/tablefield"
)

const consoleHelp = `commands:
  ls                 list the current tenant's orders
  r                  poll now
  prep|done|cancel N move order N to preparing, completed or cancelled
  use TENANT         switch tenant
  autoprint on|off   toggle receipt printing
  q                  quit
`

// AutoPrintSetter persists the auto-print switch.
type AutoPrintSetter interface {
	AutoPrint(ctx context.Context) bool
	SetAutoPrint(ctx context.Context, enabled bool) error
}

// Console is the operator's line-oriented view over running feeds.
type Console struct {
	mgr     *feed.Manager
	prefs   AutoPrintSetter
	out     io.Writer
	current *feed.Session
}

func NewConsole(mgr *feed.Manager, prefs AutoPrintSetter, out io.Writer) *Console {
	c := &Console{mgr: mgr, prefs: prefs, out: out}
	if sessions := mgr.Sessions(); len(sessions) > 0 {
		c.current = sessions[0]
	}
	return c
}

// Run reads commands from in until q, EOF or ctx is done.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	c.list()
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := c.Exec(ctx, line); quit {
				return nil
			}
		}
	}
}

// Exec runs one command line and reports whether the console should exit.
func (c *Console) Exec(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	switch cmd := fields[0]; cmd {
	case "q", "quit", "exit":
		return true
	case "help", "?":
		fmt.Fprint(c.out, consoleHelp)
	case "ls":
		c.list()
	case "r", "refresh":
		c.refresh(ctx)
	case "use":
		if len(fields) != 2 {
			fmt.Fprintln(c.out, "usage: use TENANT")
			return false
		}
		s, ok := c.mgr.Session(fields[1])
		if !ok {
			fmt.Fprintf(c.out, "unknown tenant %q\n", fields[1])
			return false
		}
		c.current = s
		c.list()
	case "prep", "done", "cancel":
		c.move(ctx, cmd, fields[1:])
	case "autoprint":
		c.autoPrint(ctx, fields[1:])
	default:
		fmt.Fprintf(c.out, "unknown command %q (try help)\n", cmd)
	}
	return false
}

func (c *Console) list() {
	if c.current == nil {
		fmt.Fprintln(c.out, "no tenants; set FEED_TENANTS or pass --tenant")
		return
	}
	orders := c.current.Snapshot()
	fmt.Fprintf(c.out, "%s: %d orders (%s)\n", c.current.TenantID(), len(orders), c.current.Source())

	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTIME\tSTATUS\tWHERE\tCUSTOMER\tTOTAL")
	for i := range orders {
		o := &orders[i]
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			o.ID, o.CreatedAt.Local().Format("15:04"), o.Status, where(o), o.CustomerName, o.Total.StringFixed(2))
	}
	_ = tw.Flush()
}

func where(o *entity.Order) string {
	if o.Location == nil {
		o.Hydrate()
	}
	switch loc := o.Location.(type) {
	case tablefield.Delivery:
		return "delivery " + loc.Phone
	case tablefield.DineIn:
		return "table " + loc.Table
	}
	return "?"
}

func (c *Console) refresh(ctx context.Context) {
	if c.current == nil {
		return
	}
	res, err := c.current.Refresh(ctx)
	if err != nil {
		fmt.Fprintf(c.out, "refresh failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "%d orders, %d new\n", res.Orders, len(res.New))
}

var commandStatus = map[string]entity.OrderStatus{
	"prep":   entity.StatusPreparing,
	"done":   entity.StatusCompleted,
	"cancel": entity.StatusCancelled,
}

func (c *Console) move(ctx context.Context, cmd string, args []string) {
	if c.current == nil {
		return
	}
	if len(args) != 1 {
		fmt.Fprintf(c.out, "usage: %s ORDER_ID\n", cmd)
		return
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		fmt.Fprintf(c.out, "invalid order id %q\n", args[0])
		return
	}
	status := commandStatus[cmd]
	if err := c.current.UpdateStatus(ctx, id, status); err != nil {
		fmt.Fprintf(c.out, "order %d: %v\n", id, err)
		return
	}
	fmt.Fprintf(c.out, "order %d %s\n", id, status)
}

func (c *Console) autoPrint(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Fprintf(c.out, "auto-print %s\n", onOff(c.prefs.AutoPrint(ctx)))
		return
	}
	enabled, err := parseOnOff(args[0])
	if err != nil {
		fmt.Fprintln(c.out, err)
		return
	}
	if err := c.prefs.SetAutoPrint(ctx, enabled); err != nil {
		fmt.Fprintf(c.out, "saving preference failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "auto-print %s\n", onOff(enabled))
}
