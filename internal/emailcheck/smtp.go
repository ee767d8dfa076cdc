package emailcheck

import (
	"context"
	"fmt"
	"net"
	"net/textproto"

	"go.uber.org/zap"
)

// smtpProbe opens a raw SMTP conversation with the MX host and walks the
// greeting -> EHLO -> MAIL FROM -> RCPT TO state machine. Only the RCPT
// response classifies the mailbox; everything unexpected is inconclusive.
func (v *Validator) smtpProbe(ctx context.Context, mxHost, email string) ProbeOutcome {
	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(mxHost, "25"))
	if err != nil {
		v.logger.Debug("smtp dial failed", zap.String("mx", mxHost), zap.Error(err))
		return ProbeInconclusive
	}
	defer func() { _ = conn.Close() }()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	text := textproto.NewConn(conn)
	defer func() { _ = text.Close() }()

	// Greeting.
	if _, _, err := text.ReadResponse(220); err != nil {
		return ProbeInconclusive
	}

	steps := []struct {
		cmd  string
		want int
	}{
		{fmt.Sprintf("EHLO %s", v.cfg.HelloDomain), 250},
		{fmt.Sprintf("MAIL FROM:<%s>", v.cfg.ProbeSender), 250},
	}
	for _, step := range steps {
		if err := text.PrintfLine("%s", step.cmd); err != nil {
			return ProbeInconclusive
		}
		if _, _, err := text.ReadResponse(step.want); err != nil {
			return ProbeInconclusive
		}
	}

	if err := text.PrintfLine("RCPT TO:<%s>", email); err != nil {
		return ProbeInconclusive
	}
	code, _, err := text.ReadResponse(-1)
	// Best-effort goodbye; the verdict is already in.
	_ = text.PrintfLine("QUIT")

	if err != nil && code == 0 {
		return ProbeInconclusive
	}
	switch code {
	case 250, 251:
		return ProbeExists
	case 550, 551, 553:
		return ProbeRejected
	default:
		return ProbeInconclusive
	}
}
