//go:build integration

package integration

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

const postgresImage = "postgres:16-alpine"

// startPostgres launches a disposable Postgres for the clinic schemas and
// returns its DSN. Docker picks the host port, which is read back with
// `docker port`.
func startPostgres(ctx context.Context) (string, func(), error) {
	out, err := exec.CommandContext(ctx, "docker", "run", "-d", "--rm",
		"-p", "127.0.0.1::5432",
		"-e", "POSTGRES_USER=dentflow",
		"-e", "POSTGRES_PASSWORD=dentflow",
		"-e", "POSTGRES_DB=clinic_it",
		postgresImage,
	).CombinedOutput()
	if err != nil {
		return "", nil, fmt.Errorf("docker run %s: %w: %s", postgresImage, err, out)
	}
	id := strings.TrimSpace(string(out))
	stop := func() { _ = exec.Command("docker", "stop", id).Run() }

	addr, err := exec.CommandContext(ctx, "docker", "port", id, "5432/tcp").Output()
	if err != nil {
		stop()
		return "", nil, fmt.Errorf("docker port: %w", err)
	}
	// Output may list an IPv6 binding too; the first line is enough.
	hostPort := strings.TrimSpace(strings.SplitN(string(addr), "\n", 2)[0])

	dsn := fmt.Sprintf("postgres://dentflow:dentflow@%s/clinic_it?sslmode=disable", hostPort)
	if err := awaitReady(ctx, dsn, 30*time.Second); err != nil {
		stop()
		return "", nil, err
	}
	return dsn, stop, nil
}

// awaitReady polls until a fresh connection can run a query. The image
// restarts the server once after init, so a single early success is not
// trusted on its own.
func awaitReady(ctx context.Context, dsn string, limit time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	tick := time.NewTicker(500 * time.Millisecond)
	defer tick.Stop()

	streak := 0
	var lastErr error
	for {
		if lastErr = tryQuery(ctx, dsn); lastErr == nil {
			streak++
			if streak == 2 {
				return nil
			}
		} else {
			streak = 0
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres not ready after %v: %v", limit, lastErr)
		case <-tick.C:
		}
	}
}

func tryQuery(ctx context.Context, dsn string) error {
	connCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	conn, err := pgx.Connect(connCtx, dsn)
	if err != nil {
		return err
	}
	defer conn.Close(context.Background())
	var one int
	return conn.QueryRow(connCtx, "SELECT 1").Scan(&one)
}
