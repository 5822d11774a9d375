// Command scanner is a terminal counting client. Each stdin line is one scan:
//
//	<barcode> [quantity] [store|warehouse]
//
// Quantity defaults to 1 and may be negative to correct a miscount; location
// defaults to store. A line with "?" prints the current totals.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-envconfig"
	"github.com/shopspring/decimal"

	"github.com/conteo/inventory-sync/internal/core/domain"
	"github.com/conteo/inventory-sync/pkg/logger"
	"github.com/conteo/inventory-sync/pkg/syncqueue"
)

type scannerConfig struct {
	APIURL     string        `env:"SYNC_API_URL,        default=http://localhost:8080"`
	AccessCode string        `env:"SCANNER_ACCESS_CODE, required"`
	Name       string        `env:"SCANNER_NAME,        required"`
	QueuePath  string        `env:"SCANNER_QUEUE_PATH,  default=scanner-queue.db"`
	Interval   time.Duration `env:"SCANNER_SYNC_INTERVAL, default=5s"`
	BatchSize  int           `env:"SCANNER_BATCH_SIZE,  default=100"`
	LogLevel   string        `env:"LOG_LEVEL,           default=info"`
}

type scan struct {
	Barcode  string
	Quantity decimal.Decimal
	Location domain.LocationTag
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "read .env:", err)
		os.Exit(1)
	}
	var cfg scannerConfig
	if err := envconfig.Process(ctx, &cfg); err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: true, Service: "scanner", Output: os.Stderr})
	if err := run(ctx, cfg, os.Stdin, os.Stdout, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("scanner stopped")
	}
}

func run(ctx context.Context, cfg scannerConfig, in io.Reader, out io.Writer, log zerolog.Logger) error {
	transport := syncqueue.NewHTTPTransport(cfg.APIURL, &http.Client{Timeout: 20 * time.Second})
	joined, err := transport.Join(ctx, cfg.AccessCode, cfg.Name)
	if err != nil {
		return fmt.Errorf("join session: %w", err)
	}

	store, err := syncqueue.OpenSQLiteStore(cfg.QueuePath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	q := syncqueue.New(store, transport, syncqueue.Config{
		SessionID:     joined.SessionID,
		ParticipantID: joined.ParticipantID,
		BatchSize:     cfg.BatchSize,
		Interval:      cfg.Interval,
		OnReadOnly: func() {
			fmt.Fprintln(out, "session finalized, counting is closed")
			cancel()
		},
		Log: log,
	})

	fmt.Fprintf(out, "joined session %s as %s\n", joined.SessionID, cfg.Name)

	loopDone := make(chan error, 1)
	go func() { loopDone <- q.Run(ctx) }()

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

	for {
		select {
		case <-ctx.Done():
			return waitLoop(loopDone)
		case line, ok := <-lines:
			if !ok {
				// stdin closed: push what is left before exiting.
				if _, err := q.Flush(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, syncqueue.ErrReadOnly) {
					log.Warn().Err(err).Msg("final flush failed, scans stay queued on disk")
				}
				cancel()
				return waitLoop(loopDone)
			}
			handleLine(ctx, q, line, out)
		}
	}
}

func handleLine(ctx context.Context, q *syncqueue.Queue, line string, out io.Writer) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	if line == "?" {
		view, err := q.View(ctx)
		if err != nil {
			fmt.Fprintln(out, "error:", err)
			return
		}
		for _, b := range view {
			fmt.Fprintf(out, "%-20s store=%s warehouse=%s total=%s\n", b.Barcode, b.Store, b.Warehouse, b.Total)
		}
		return
	}

	s, err := parseLine(line)
	if err != nil {
		fmt.Fprintln(out, "error:", err)
		return
	}
	if _, err := q.Enqueue(ctx, s.Barcode, s.Quantity, s.Location); err != nil {
		fmt.Fprintln(out, "error:", err)
		return
	}
	fmt.Fprintf(out, "queued %s %s (%s)\n", s.Barcode, s.Quantity, strings.ToLower(string(s.Location)))
}

func waitLoop(done <-chan error) error {
	err := <-done
	if errors.Is(err, syncqueue.ErrSessionClosed) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// parseLine reads "<barcode> [quantity] [store|warehouse]".
func parseLine(line string) (scan, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 || len(fields) > 3 {
		return scan{}, fmt.Errorf("expected: <barcode> [quantity] [store|warehouse]")
	}

	s := scan{Barcode: fields[0], Quantity: decimal.NewFromInt(1), Location: domain.LocationStore}
	for _, f := range fields[1:] {
		switch loc := domain.LocationTag(strings.ToUpper(f)); {
		case loc.Valid():
			s.Location = loc
		default:
			qty, err := decimal.NewFromString(f)
			if err != nil {
				return scan{}, fmt.Errorf("invalid quantity %q", f)
			}
			if qty.IsZero() {
				return scan{}, errors.New("quantity must not be zero")
			}
			s.Quantity = qty
		}
	}
	return s, nil
}
