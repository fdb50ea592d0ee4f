package geo

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/playperu/rallye/internal/rallye"
)

const gpsdWatch = `?WATCH={"enable":true,"json":true};` + "\n"

// GPSDSource streams fixes from a gpsd daemon (TPV reports).
type GPSDSource struct {
	Addr string
}

func (s GPSDSource) Watch(ctx context.Context, out chan<- rallye.Position) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("dialing gpsd %s: %w", s.Addr, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if _, err := io.WriteString(conn, gpsdWatch); err != nil {
		return fmt.Errorf("enabling gpsd watch: %w", err)
	}
	return ReadTPV(ctx, conn, out)
}

type tpvReport struct {
	Class string   `json:"class"`
	Mode  int      `json:"mode"`
	Lat   *float64 `json:"lat"`
	Lon   *float64 `json:"lon"`
}

// ReadTPV forwards every 2D/3D fix found in a gpsd JSON stream. Other
// report classes and malformed lines are skipped.
func ReadTPV(ctx context.Context, r io.Reader, out chan<- rallye.Position) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		var rep tpvReport
		if err := json.Unmarshal(sc.Bytes(), &rep); err != nil {
			continue
		}
		if rep.Class != "TPV" || rep.Mode < 2 || rep.Lat == nil || rep.Lon == nil {
			continue
		}
		select {
		case out <- rallye.Position{Lat: *rep.Lat, Lon: *rep.Lon}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading gpsd stream: %w", err)
	}
	return errors.New("gpsd stream closed")
}
