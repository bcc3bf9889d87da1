package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"dqx0.com/go/wireclient/wsx"
)

var wsCmd = &cobra.Command{
	Use:   "ws URL",
	Short: "Open a WebSocket session",
	Long: `Open a WebSocket session. Every stdin line is sent as a text message and
every received message is printed on its own line. End of input closes the
session with 1000.`,
	Args: cobra.ExactArgs(1),
	RunE: runWS,
}

func init() {
	wsCmd.Flags().StringArrayP("header", "H", nil, "handshake header 'name: value' (repeatable)")
	wsCmd.Flags().StringP("protocol", "p", "", "requested subprotocol")
}

func runWS(cmd *cobra.Command, args []string) error {
	rawHeaders, _ := cmd.Flags().GetStringArray("header")
	proto, _ := cmd.Flags().GetString("protocol")
	h, err := parseHeaders(rawHeaders)
	if err != nil {
		return err
	}
	if proto != "" {
		h.Set("sec-websocket-protocol", proto)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	out := cmd.OutOrStdout()
	var closeCode int
	var closeReason string
	handler := wsx.HandlerFuncs{
		Message: func(s *wsx.Session, m wsx.Message) {
			if m.IsText() {
				fmt.Fprintln(out, m.Text())
			} else {
				fmt.Fprintf(out, "[binary %d bytes]\n", len(m.Data))
			}
		},
		Close: func(s *wsx.Session, code int, reason string) {
			closeCode, closeReason = code, reason
		},
	}

	lg := newLogger(cmd)
	s, err := wsx.Dial(ctx, args[0], h, handler, GetConfig().SessionOptions(lg))
	if err != nil {
		return err
	}

	go pumpLines(cmd.InOrStdin(), s)

	select {
	case <-s.Done():
	case <-ctx.Done():
		_ = s.Close(wsx.CloseGoingAway, "")
		<-s.Done()
	}
	if closeCode != wsx.CloseNormal && closeCode != wsx.CloseGoingAway {
		return fmt.Errorf("session closed: %d %s", closeCode, closeReason)
	}
	return nil
}

// pumpLines sends every line of r as a text message, then closes s.
func pumpLines(r io.Reader, s *wsx.Session) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64<<10), 16<<20)
	for sc.Scan() {
		if err := s.SendText(sc.Text()); err != nil {
			return
		}
	}
	_ = s.Close(wsx.CloseNormal, "")
}
