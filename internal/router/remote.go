package router

import (
	"context"
	"encoding/json"
	"fmt"

	"dca-vault/internal/router/rest"
	"dca-vault/internal/router/ws"

	"go.uber.org/zap"
)

const (
	DigestHeader    = "X-Request-Digest"
	SignatureHeader = "X-Request-Signature"
	SignerHeader    = "X-Request-Signer"
)

// Remote submits requests to a relay over REST and reads outcomes from its
// websocket stream.
type Remote struct {
	rest   *rest.Client
	stream *ws.Client
	signer *Signer
	sender string
	log    *zap.Logger
}

func NewRemote(restClient *rest.Client, stream *ws.Client, signer *Signer, sender string, log *zap.Logger) *Remote {
	if log == nil {
		log = zap.NewNop()
	}
	return &Remote{rest: restClient, stream: stream, signer: signer, sender: sender, log: log}
}

func (r *Remote) Submit(ctx context.Context, req Request) (Ack, error) {
	digest, err := Digest(req)
	if err != nil {
		return Ack{}, err
	}
	headers := map[string]string{DigestHeader: digest}
	if r.signer != nil {
		sig, err := r.signer.Sign(digest)
		if err != nil {
			return Ack{}, err
		}
		headers[SignatureHeader] = sig
		headers[SignerHeader] = r.signer.Address().Hex()
	}
	var ack Ack
	if err := r.rest.PostJSON(ctx, "/swap", headers, req, &ack); err != nil {
		return Ack{}, err
	}
	if ack.Digest != "" && ack.Digest != digest {
		return Ack{}, fmt.Errorf("relay digest mismatch for %s: %s != %s", req.CorrelationID, ack.Digest, digest)
	}
	return ack, nil
}

// Run subscribes to the outcome channel for sender and blocks until ctx ends.
func (r *Remote) Run(ctx context.Context, handler func(Outcome)) error {
	if r.stream == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	sub := map[string]any{
		"method":       "subscribe",
		"subscription": map[string]string{"type": OutcomeChannel, "sender": r.sender},
	}
	if err := r.stream.Subscribe(ctx, sub); err != nil {
		return err
	}
	return r.stream.Run(ctx, func(env ws.Envelope) {
		if env.Channel != OutcomeChannel {
			return
		}
		var o Outcome
		if err := json.Unmarshal(env.Data, &o); err != nil {
			r.log.Warn("swap outcome decode failed", zap.Error(err))
			return
		}
		if o.CorrelationID == "" {
			r.log.Warn("swap outcome without correlation id")
			return
		}
		if handler != nil {
			handler(o)
		}
	})
}
