package router

import (
	"bytes"
	"errors"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/vmihailenco/msgpack/v5"
)

// EncodeRequest writes the request as msgpack with a fixed key order so the
// digest is stable across encoders.
func EncodeRequest(req Request) ([]byte, error) {
	if req.CorrelationID == "" {
		return nil, errors.New("correlation id is required")
	}
	if req.InputCoin.Denom == "" || req.OutputDenom == "" {
		return nil, errors.New("input and output denoms are required")
	}
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := enc.EncodeMapLen(6); err != nil {
		return nil, err
	}
	for _, kv := range [][2]string{
		{"correlation_id", req.CorrelationID},
		{"sender", req.Sender},
		{"router", req.Router},
	} {
		if err := encodeString(enc, kv[0], kv[1]); err != nil {
			return nil, err
		}
	}
	if err := enc.EncodeString("input_coin"); err != nil {
		return nil, err
	}
	if err := enc.EncodeMapLen(2); err != nil {
		return nil, err
	}
	if err := encodeString(enc, "denom", req.InputCoin.Denom); err != nil {
		return nil, err
	}
	if err := encodeString(enc, "amount", req.InputCoin.Amount); err != nil {
		return nil, err
	}
	if err := encodeString(enc, "output_denom", req.OutputDenom); err != nil {
		return nil, err
	}
	if err := enc.EncodeString("slippage"); err != nil {
		return nil, err
	}
	if err := encodeTwap(enc, req.Slippage.Twap); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeTwap(enc *msgpack.Encoder, twap Twap) error {
	if err := enc.EncodeMapLen(1); err != nil {
		return err
	}
	if err := enc.EncodeString("twap"); err != nil {
		return err
	}
	if err := enc.EncodeMapLen(2); err != nil {
		return err
	}
	if err := enc.EncodeString("window_seconds"); err != nil {
		return err
	}
	if err := enc.EncodeUint(twap.WindowSeconds); err != nil {
		return err
	}
	return encodeString(enc, "slippage_percentage", twap.SlippagePercentage)
}

func encodeString(enc *msgpack.Encoder, key, value string) error {
	if err := enc.EncodeString(key); err != nil {
		return err
	}
	return enc.EncodeString(value)
}

// Digest is the 0x-prefixed keccak256 of the canonical encoding.
func Digest(req Request) (string, error) {
	payload, err := EncodeRequest(req)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(crypto.Keccak256(payload)), nil
}
