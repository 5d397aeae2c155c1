package rpc

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"

	"soltick/pkg/account"
	"soltick/pkg/errors"
	"soltick/pkg/ledger"
	"soltick/pkg/transaction"
	"soltick/pkg/types"

	"github.com/quic-go/quic-go"
)

// Client issues requests to a node over one stream. It is safe for concurrent use;
// requests are serialized.
type Client struct {
	mu     sync.Mutex
	rw     io.ReadWriter
	closer func() error
}

// DialUnix connects to a node's unix socket.
func DialUnix(socketPath string) (*Client, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", socketPath, err)
	}
	return &Client{rw: conn, closer: conn.Close}, nil
}

// DialQUIC connects to a node's QUIC listener. expected pins the node identity;
// pass the zero key to accept any node.
func DialQUIC(ctx context.Context, addr string, expected types.Pubkey) (*Client, error) {
	conn, err := quic.DialAddr(ctx, addr, ClientTLSConfig(expected), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}
	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		conn.CloseWithError(0, "")
		return nil, fmt.Errorf("failed to open stream: %w", err)
	}
	return &Client{
		rw: stream,
		closer: func() error {
			stream.Close()
			return conn.CloseWithError(0, "")
		},
	}, nil
}

func (c *Client) Close() error {
	return c.closer()
}

// call sends req and waits for the response. An Error response is returned as the
// matching ProgramError.
func (c *Client) call(req RequestMessage) (ResponseMessage, error) {
	data, err := EncodeRequest(req)
	if err != nil {
		return ResponseMessage{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.rw.Write(data); err != nil {
		return ResponseMessage{}, fmt.Errorf("failed to send request: %w", err)
	}
	msgData, err := readFrame(c.rw)
	if err != nil {
		return ResponseMessage{}, fmt.Errorf("failed to read response: %w", err)
	}
	resp, err := DecodeResponse(msgData)
	if err != nil {
		return ResponseMessage{}, err
	}
	if resp.Error != nil {
		if resp.Error.Code == 0 {
			return ResponseMessage{}, fmt.Errorf("node error: %s", resp.Error.Message)
		}
		return ResponseMessage{}, errors.FromCode(resp.Error.Code, resp.Error.Message)
	}
	return resp, nil
}

func unexpected(want string) error {
	return fmt.Errorf("unexpected response, wanted %s", want)
}

func (c *Client) GetAccount(key types.Pubkey) (account.Record, bool, error) {
	resp, err := c.call(RequestMessage{GetAccount: &GetAccount{Pubkey: key}})
	if err != nil {
		return account.Record{}, false, err
	}
	if resp.Account == nil {
		return account.Record{}, false, unexpected("account")
	}
	return resp.Account.Record, resp.Account.Found, nil
}

// SendTransaction submits tx and waits for it to be processed. A transaction that
// failed during execution returns its status with a nil error; use Status.Failure.
func (c *Client) SendTransaction(tx transaction.Transaction) (ledger.Status, error) {
	resp, err := c.call(RequestMessage{SendTransaction: &SendTransaction{Transaction: tx}})
	if err != nil {
		return ledger.Status{}, err
	}
	if resp.Transaction == nil {
		return ledger.Status{}, unexpected("transaction")
	}
	return resp.Transaction.Status, nil
}

func (c *Client) RequestAirdrop(key types.Pubkey, lamports types.Lamports) (types.Lamports, error) {
	resp, err := c.call(RequestMessage{RequestAirdrop: &RequestAirdrop{Pubkey: key, Lamports: lamports}})
	if err != nil {
		return 0, err
	}
	if resp.Balance == nil {
		return 0, unexpected("balance")
	}
	return resp.Balance.Lamports, nil
}

func (c *Client) GetTransaction(sig types.Signature) (ledger.Status, bool, error) {
	resp, err := c.call(RequestMessage{GetTransaction: &GetTransaction{Signature: sig}})
	if err != nil {
		return ledger.Status{}, false, err
	}
	if resp.Transaction == nil {
		return ledger.Status{}, false, unexpected("transaction")
	}
	return resp.Transaction.Status, resp.Transaction.Found, nil
}

func (c *Client) GetEvent(key types.Pubkey) (EventEntry, error) {
	resp, err := c.call(RequestMessage{GetEvent: &GetEvent{Pubkey: key}})
	if err != nil {
		return EventEntry{}, err
	}
	if resp.Event == nil {
		return EventEntry{}, unexpected("event")
	}
	return resp.Event.EventEntry, nil
}

// ListEvents fetches every event, one page at a time.
func (c *Client) ListEvents() ([]EventEntry, error) {
	var all []EventEntry
	var after *types.Pubkey
	for {
		page, more, err := c.ListEventsPage(after, 0)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if !more || len(page) == 0 {
			return all, nil
		}
		last := page[len(page)-1].Pubkey
		after = &last
	}
}

func (c *Client) ListEventsPage(after *types.Pubkey, limit uint32) ([]EventEntry, bool, error) {
	resp, err := c.call(RequestMessage{ListEvents: &ListEvents{After: after, Limit: limit}})
	if err != nil {
		return nil, false, err
	}
	if resp.Events == nil {
		return nil, false, unexpected("events")
	}
	return resp.Events.Events, resp.Events.More, nil
}

func (c *Client) GetRecentHash() (types.Hash, types.Slot, error) {
	resp, err := c.call(RequestMessage{GetRecentHash: &GetRecentHash{}})
	if err != nil {
		return types.Hash{}, 0, err
	}
	if resp.RecentHash == nil {
		return types.Hash{}, 0, unexpected("recent hash")
	}
	return resp.RecentHash.Hash, resp.RecentHash.Slot, nil
}
