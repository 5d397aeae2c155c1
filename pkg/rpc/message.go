package rpc

import (
	"encoding/binary"
	"fmt"
	"io"

	"soltick/pkg/account"
	"soltick/pkg/constants"
	"soltick/pkg/errors"
	"soltick/pkg/ledger"
	"soltick/pkg/serializer"
	"soltick/pkg/state"
	"soltick/pkg/transaction"
	"soltick/pkg/types"
)

// Wire format: every frame is a 4-byte little-endian length followed by a one-byte
// message type and the serialized message body.

type GetAccount struct {
	Pubkey types.Pubkey
}

type SendTransaction struct {
	Transaction transaction.Transaction
}

type RequestAirdrop struct {
	Pubkey   types.Pubkey
	Lamports types.Lamports
}

type GetTransaction struct {
	Signature types.Signature
}

type GetEvent struct {
	Pubkey types.Pubkey
}

type GetRecentHash struct{}

// ListEvents asks for events with addresses strictly after After (from the start
// when nil), at most Limit of them. A zero Limit means the server maximum.
type ListEvents struct {
	After *types.Pubkey
	Limit uint32
}

type RequestMessage struct {
	GetAccount      *GetAccount
	SendTransaction *SendTransaction
	RequestAirdrop  *RequestAirdrop
	GetTransaction  *GetTransaction
	GetEvent        *GetEvent
	GetRecentHash   *GetRecentHash
	ListEvents      *ListEvents
}

type AccountResult struct {
	Found  bool
	Record account.Record
}

type TransactionResult struct {
	Signature types.Signature
	Found     bool
	Status    ledger.Status
}

type BalanceResult struct {
	Lamports types.Lamports
}

type EventEntry struct {
	Pubkey types.Pubkey
	Event  state.Event
}

type EventResult struct {
	EventEntry
}

type EventsResult struct {
	Events []EventEntry
	// More is set when events after the last entry were left out.
	More bool
}

type RecentHashResult struct {
	Hash types.Hash
	Slot types.Slot
}

// ErrorResult carries a ProgramError code, or 0 for an internal node failure.
type ErrorResult struct {
	Code    errors.Code
	Message string
}

type ResponseMessage struct {
	Account     *AccountResult
	Transaction *TransactionResult
	Balance     *BalanceResult
	Event       *EventResult
	Events      *EventsResult
	RecentHash  *RecentHashResult
	Error       *ErrorResult
}

// RequestMessageType identifies the type of a request message
type RequestMessageType byte

const (
	RequestMessageTypeGetAccount      RequestMessageType = 0
	RequestMessageTypeSendTransaction RequestMessageType = 1
	RequestMessageTypeRequestAirdrop  RequestMessageType = 2
	RequestMessageTypeGetTransaction  RequestMessageType = 3
	RequestMessageTypeGetEvent        RequestMessageType = 4
	RequestMessageTypeGetRecentHash   RequestMessageType = 5
	RequestMessageTypeListEvents      RequestMessageType = 6
)

// ResponseMessageType identifies the type of a response message
type ResponseMessageType byte

const (
	ResponseMessageTypeAccount     ResponseMessageType = 0
	ResponseMessageTypeTransaction ResponseMessageType = 1
	ResponseMessageTypeBalance     ResponseMessageType = 2
	ResponseMessageTypeEvent       ResponseMessageType = 4
	ResponseMessageTypeRecentHash  ResponseMessageType = 5
	ResponseMessageTypeEvents      ResponseMessageType = 6
	ResponseMessageTypeError       ResponseMessageType = 255
)

func EncodeRequest(msg RequestMessage) ([]byte, error) {
	var body []byte
	var msgType RequestMessageType

	switch {
	case msg.GetAccount != nil:
		body, msgType = serializer.Serialize(*msg.GetAccount), RequestMessageTypeGetAccount
	case msg.SendTransaction != nil:
		body, msgType = serializer.Serialize(*msg.SendTransaction), RequestMessageTypeSendTransaction
	case msg.RequestAirdrop != nil:
		body, msgType = serializer.Serialize(*msg.RequestAirdrop), RequestMessageTypeRequestAirdrop
	case msg.GetTransaction != nil:
		body, msgType = serializer.Serialize(*msg.GetTransaction), RequestMessageTypeGetTransaction
	case msg.GetEvent != nil:
		body, msgType = serializer.Serialize(*msg.GetEvent), RequestMessageTypeGetEvent
	case msg.GetRecentHash != nil:
		msgType = RequestMessageTypeGetRecentHash
	case msg.ListEvents != nil:
		msgType = RequestMessageTypeListEvents
	default:
		return nil, fmt.Errorf("unknown request message type")
	}
	return frame(byte(msgType), body), nil
}

// DecodeRequest parses an unframed request (type byte and body).
func DecodeRequest(data []byte) (RequestMessage, error) {
	if len(data) == 0 {
		return RequestMessage{}, errors.Errorf(errors.ErrDecode, "empty request")
	}
	body := data[1:]
	var msg RequestMessage
	var err error

	switch RequestMessageType(data[0]) {
	case RequestMessageTypeGetAccount:
		msg.GetAccount = &GetAccount{}
		err = serializer.Deserialize(body, msg.GetAccount)
	case RequestMessageTypeSendTransaction:
		if len(body) > constants.MaxTransactionSize {
			return RequestMessage{}, errors.Errorf(errors.ErrInvalidTransaction, "transaction of %d bytes too large", len(body))
		}
		msg.SendTransaction = &SendTransaction{}
		err = serializer.Deserialize(body, msg.SendTransaction)
	case RequestMessageTypeRequestAirdrop:
		msg.RequestAirdrop = &RequestAirdrop{}
		err = serializer.Deserialize(body, msg.RequestAirdrop)
	case RequestMessageTypeGetTransaction:
		msg.GetTransaction = &GetTransaction{}
		err = serializer.Deserialize(body, msg.GetTransaction)
	case RequestMessageTypeGetEvent:
		msg.GetEvent = &GetEvent{}
		err = serializer.Deserialize(body, msg.GetEvent)
	case RequestMessageTypeGetRecentHash:
		msg.GetRecentHash = &GetRecentHash{}
		err = serializer.Deserialize(body, msg.GetRecentHash)
	case RequestMessageTypeListEvents:
		msg.ListEvents = &ListEvents{}
		err = serializer.Deserialize(body, msg.ListEvents)
	default:
		return RequestMessage{}, errors.Errorf(errors.ErrDecode, "unknown request type %d", data[0])
	}
	if err != nil {
		return RequestMessage{}, err
	}
	return msg, nil
}

func EncodeResponse(msg ResponseMessage) ([]byte, error) {
	var body []byte
	var msgType ResponseMessageType

	switch {
	case msg.Account != nil:
		body, msgType = serializer.Serialize(*msg.Account), ResponseMessageTypeAccount
	case msg.Transaction != nil:
		body, msgType = serializer.Serialize(*msg.Transaction), ResponseMessageTypeTransaction
	case msg.Balance != nil:
		body, msgType = serializer.Serialize(*msg.Balance), ResponseMessageTypeBalance
	case msg.Event != nil:
		body, msgType = serializer.Serialize(*msg.Event), ResponseMessageTypeEvent
	case msg.Events != nil:
		body, msgType = serializer.Serialize(*msg.Events), ResponseMessageTypeEvents
	case msg.RecentHash != nil:
		body, msgType = serializer.Serialize(*msg.RecentHash), ResponseMessageTypeRecentHash
	case msg.Error != nil:
		body, msgType = serializer.Serialize(*msg.Error), ResponseMessageTypeError
	default:
		return nil, fmt.Errorf("unknown response message type")
	}
	return frame(byte(msgType), body), nil
}

// DecodeResponse parses an unframed response (type byte and body).
func DecodeResponse(data []byte) (ResponseMessage, error) {
	if len(data) == 0 {
		return ResponseMessage{}, errors.Errorf(errors.ErrDecode, "empty response")
	}
	body := data[1:]
	var msg ResponseMessage
	var err error

	switch ResponseMessageType(data[0]) {
	case ResponseMessageTypeAccount:
		msg.Account = &AccountResult{}
		err = serializer.Deserialize(body, msg.Account)
	case ResponseMessageTypeTransaction:
		msg.Transaction = &TransactionResult{}
		err = serializer.Deserialize(body, msg.Transaction)
	case ResponseMessageTypeBalance:
		msg.Balance = &BalanceResult{}
		err = serializer.Deserialize(body, msg.Balance)
	case ResponseMessageTypeEvent:
		msg.Event = &EventResult{}
		err = serializer.Deserialize(body, msg.Event)
	case ResponseMessageTypeEvents:
		msg.Events = &EventsResult{}
		err = serializer.Deserialize(body, msg.Events)
	case ResponseMessageTypeRecentHash:
		msg.RecentHash = &RecentHashResult{}
		err = serializer.Deserialize(body, msg.RecentHash)
	case ResponseMessageTypeError:
		msg.Error = &ErrorResult{}
		err = serializer.Deserialize(body, msg.Error)
	default:
		return ResponseMessage{}, errors.Errorf(errors.ErrDecode, "unknown response type %d", data[0])
	}
	if err != nil {
		return ResponseMessage{}, err
	}
	return msg, nil
}

func frame(msgType byte, body []byte) []byte {
	out := make([]byte, 4, 5+len(body))
	binary.LittleEndian.PutUint32(out, uint32(1+len(body)))
	out = append(out, msgType)
	return append(out, body...)
}

// readFrame reads one length-prefixed frame and returns its contents.
func readFrame(r io.Reader) ([]byte, error) {
	lengthBytes := make([]byte, 4)
	if _, err := io.ReadFull(r, lengthBytes); err != nil {
		return nil, err
	}
	length := binary.LittleEndian.Uint32(lengthBytes)
	if length == 0 || length > constants.MaxMessageSize {
		return nil, fmt.Errorf("invalid frame length %d", length)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}
