package escrow

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"escrowScope/internal/model"
)

// Decoder decodes escrow contract logs into typed events. All eleven event
// shapes go through the same path: the event schema from the ABI drives
// which parameters come from topics and which from data, so adding an event
// to the ABI is enough to decode it.
type Decoder struct {
	contractABI abi.ABI
	topicToName map[string]string
}

// NewDecoder builds a decoder from the contract event ABI.
func NewDecoder() (*Decoder, error) {
	contractABI, err := ContractABI()
	if err != nil {
		return nil, err
	}

	topicToName := make(map[string]string, len(contractABI.Events))
	for name, event := range contractABI.Events {
		topicToName[strings.ToLower(event.ID.Hex())] = name
	}

	return &Decoder{
		contractABI: contractABI,
		topicToName: topicToName,
	}, nil
}

// CanDecode checks if the topic0 belongs to a known escrow event.
func (d *Decoder) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	_, ok := d.topicToName[strings.ToLower(topic0)]
	return ok
}

// Decode converts a LogRecord into a TypedEvent. The decoded payload is a
// map keyed by the contract parameter names, with uint256 values rendered
// as decimal strings and addresses as checksummed hex.
func (d *Decoder) Decode(log model.LogRecord) (*model.TypedEvent, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("missing topics")
	}
	name, ok := d.topicToName[strings.ToLower(log.Topics[0])]
	if !ok {
		return nil, fmt.Errorf("unsupported topic0: %s", log.Topics[0])
	}
	event := d.contractABI.Events[name]

	values := make(map[string]interface{}, len(event.Inputs))

	indexed := indexedArguments(event.Inputs)
	if len(log.Topics) != len(indexed)+1 {
		return nil, fmt.Errorf("%s: expected %d topics, got %d", name, len(indexed)+1, len(log.Topics))
	}
	if len(indexed) > 0 {
		topics, err := parseTopicHashes(log.Topics[1:])
		if err != nil {
			return nil, err
		}
		if err := abi.ParseTopicsIntoMap(values, indexed, topics); err != nil {
			return nil, fmt.Errorf("parse topics for %s: %w", name, err)
		}
	}

	data, err := hexutil.Decode(log.Data)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	if len(event.Inputs.NonIndexed()) > 0 {
		if err := event.Inputs.NonIndexed().UnpackIntoMap(values, data); err != nil {
			return nil, fmt.Errorf("unpack %s: %w", name, err)
		}
	}

	decoded := make(map[string]interface{}, len(values))
	for key, value := range values {
		normalized, err := normalizeValue(value)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", name, key, err)
		}
		decoded[key] = normalized
	}

	return buildTypedEvent(log, name, decoded), nil
}

func buildTypedEvent(log model.LogRecord, name string, decoded map[string]interface{}) *model.TypedEvent {
	raw := &model.RawLogRef{Topic0: log.Topics[0], Data: log.Data}
	return &model.TypedEvent{
		ChainID:     log.ChainID,
		BlockNumber: log.BlockNumber,
		BlockHash:   log.BlockHash,
		TxHash:      log.TxHash,
		LogIndex:    log.LogIndex,
		Address:     log.Address,
		EventName:   name,
		Timestamp:   log.Timestamp,
		Decoded:     decoded,
		Raw:         raw,
	}
}

// normalizeValue renders ABI values into JSON-safe forms. Big integers
// become decimal strings so 256-bit widths survive the round trip.
func normalizeValue(value interface{}) (interface{}, error) {
	switch typed := value.(type) {
	case common.Address:
		return typed.Hex(), nil
	case *big.Int:
		if typed == nil {
			return nil, fmt.Errorf("nil big.Int")
		}
		return typed.String(), nil
	case common.Hash:
		return typed.Hex(), nil
	case []byte:
		return hexutil.Encode(typed), nil
	case bool, string:
		return typed, nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", value)
	}
}

func parseTopicHashes(topics []string) ([]common.Hash, error) {
	out := make([]common.Hash, 0, len(topics))
	for _, topic := range topics {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}
