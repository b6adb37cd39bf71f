// Package command implements the fixed command surface layered on top of
// the codec and the keyspace: parsing a RESP array into a typed Command,
// and executing a Command against a *keyspace.Keyspace to produce the
// RESP response.
//
// Grounded in commands.go's handleCommand dispatch (uppercase the first
// array element, switch on the command name, per-command arity and
// argument validation yielding the same wire error strings), rebuilt
// around a fixed tagged variant instead of a registry of handler funcs
// since the command surface here is closed, not extensible.
package command

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/redistore/redistore/keyspace"
	"github.com/redistore/redistore/resp"
)

// Kind identifies which command variant a Command holds.
type Kind int

const (
	Ping Kind = iota
	Get
	Set
	Del
	SetNx
	SetEx
	Incr
	Decr
	IncrBy
	DecrBy
	MGet
	MSet
	Expire
	Ttl
	Persist
	Keys
)

// Command is a tagged variant over the supported command surface. Only
// the fields relevant to Kind are meaningful.
type Command struct {
	Kind Kind

	Key     string
	Keys    []string
	Data    []byte
	Seconds int64
	Delta   int64
	Pattern string

	// PingMsg is the optional PING argument; PingHasMsg distinguishes a
	// bare PING from "PING ''".
	PingMsg    []byte
	PingHasMsg bool

	// MSetPairs holds the key/value pairs for MSet.
	MSetPairs []keyspace.MSetPair
}

// ClientError is a command-level error: the connection stays open and the
// message is written back verbatim as a RESP Error.
type ClientError struct {
	Msg string
}

func (e *ClientError) Error() string { return e.Msg }

func clientErr(format string, args ...interface{}) error {
	return &ClientError{Msg: fmt.Sprintf(format, args...)}
}

// ParseCommand converts a parsed RESP value (expected to be a non-null
// Array of BulkStrings, as produced by either RESP-array or inline
// framing) into a Command, or a *ClientError describing why it could not.
func ParseCommand(v resp.Value) (Command, error) {
	if v.Type != resp.Array || v.ArrayIsNull || len(v.Items) == 0 {
		return Command{}, clientErr("ERR expected array")
	}

	args := make([]string, len(v.Items))
	for i, item := range v.Items {
		args[i] = string(itemBytes(item))
	}

	name := strings.ToUpper(args[0])
	rest := args[1:]

	switch name {
	case "PING":
		return parsePing(rest)
	case "GET":
		return parseGet(rest)
	case "SET":
		return parseSet(rest)
	case "DEL":
		return parseDel(rest)
	case "SETNX":
		return parseSetNx(rest)
	case "SETEX":
		return parseSetEx(rest)
	case "INCR":
		return parseIncrDecr(Incr, rest, "incr")
	case "DECR":
		return parseIncrDecr(Decr, rest, "decr")
	case "INCRBY":
		return parseIncrDecrBy(IncrBy, rest, "incrby")
	case "DECRBY":
		return parseIncrDecrBy(DecrBy, rest, "decrby")
	case "MGET":
		return parseMGet(rest)
	case "MSET":
		return parseMSet(rest)
	case "EXPIRE":
		return parseExpire(rest)
	case "TTL":
		return parseTtl(rest)
	case "PERSIST":
		return parsePersist(rest)
	case "KEYS":
		return parseKeys(rest)
	default:
		return Command{}, clientErr("ERR unknown command '%s'", args[0])
	}
}

// itemBytes extracts the raw bytes of a bulk or simple string array
// element; other element types have no byte representation and are
// treated as empty (arity/content checks downstream still catch the
// resulting malformed command).
func itemBytes(v resp.Value) []byte {
	switch v.Type {
	case resp.BulkString:
		if v.BulkIsNull {
			return nil
		}
		return v.Bulk
	case resp.SimpleString:
		return []byte(v.Str)
	default:
		return nil
	}
}

func arityErr(cmd string) error {
	return clientErr("ERR wrong number of arguments for '%s' command", cmd)
}

func notIntegerErr() error {
	return clientErr("ERR value is not an integer or out of range")
}

func parsePing(args []string) (Command, error) {
	switch len(args) {
	case 0:
		return Command{Kind: Ping}, nil
	case 1:
		return Command{Kind: Ping, PingMsg: []byte(args[0]), PingHasMsg: true}, nil
	default:
		return Command{}, arityErr("ping")
	}
}

func parseGet(args []string) (Command, error) {
	if len(args) != 1 {
		return Command{}, arityErr("get")
	}
	return Command{Kind: Get, Key: args[0]}, nil
}

func parseSet(args []string) (Command, error) {
	if len(args) != 2 {
		return Command{}, arityErr("set")
	}
	return Command{Kind: Set, Key: args[0], Data: []byte(args[1])}, nil
}

func parseDel(args []string) (Command, error) {
	if len(args) < 1 {
		return Command{}, arityErr("del")
	}
	return Command{Kind: Del, Keys: args}, nil
}

func parseSetNx(args []string) (Command, error) {
	if len(args) != 2 {
		return Command{}, arityErr("setnx")
	}
	return Command{Kind: SetNx, Key: args[0], Data: []byte(args[1])}, nil
}

func parseSetEx(args []string) (Command, error) {
	if len(args) != 3 {
		return Command{}, arityErr("setex")
	}
	seconds, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return Command{}, notIntegerErr()
	}
	if seconds <= 0 {
		return Command{}, clientErr("ERR invalid expire time in 'setex' command")
	}
	return Command{Kind: SetEx, Key: args[0], Seconds: seconds, Data: []byte(args[2])}, nil
}

func parseIncrDecr(kind Kind, args []string, cmd string) (Command, error) {
	if len(args) != 1 {
		return Command{}, arityErr(cmd)
	}
	return Command{Kind: kind, Key: args[0]}, nil
}

func parseIncrDecrBy(kind Kind, args []string, cmd string) (Command, error) {
	if len(args) != 2 {
		return Command{}, arityErr(cmd)
	}
	delta, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return Command{}, notIntegerErr()
	}
	return Command{Kind: kind, Key: args[0], Delta: delta}, nil
}

func parseMGet(args []string) (Command, error) {
	if len(args) < 1 {
		return Command{}, arityErr("mget")
	}
	return Command{Kind: MGet, Keys: args}, nil
}

func parseMSet(args []string) (Command, error) {
	if len(args) < 2 || len(args)%2 != 0 {
		return Command{}, arityErr("mset")
	}
	pairs := make([]keyspace.MSetPair, 0, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		pairs = append(pairs, keyspace.MSetPair{Key: args[i], Value: []byte(args[i+1])})
	}
	return Command{Kind: MSet, MSetPairs: pairs}, nil
}

func parseExpire(args []string) (Command, error) {
	if len(args) != 2 {
		return Command{}, arityErr("expire")
	}
	seconds, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return Command{}, notIntegerErr()
	}
	return Command{Kind: Expire, Key: args[0], Seconds: seconds}, nil
}

func parseTtl(args []string) (Command, error) {
	if len(args) != 1 {
		return Command{}, arityErr("ttl")
	}
	return Command{Kind: Ttl, Key: args[0]}, nil
}

func parsePersist(args []string) (Command, error) {
	if len(args) != 1 {
		return Command{}, arityErr("persist")
	}
	return Command{Kind: Persist, Key: args[0]}, nil
}

func parseKeys(args []string) (Command, error) {
	if len(args) != 1 {
		return Command{}, arityErr("keys")
	}
	return Command{Kind: Keys, Pattern: args[0]}, nil
}

// Execute applies cmd against ks and returns the RESP response to write
// back, per the response-shape table: success and command-level-failure
// results are both ordinary resp.Value responses (a ClientError is never
// returned from here — ParseCommand is the only place that produces one).
func Execute(cmd Command, ks *keyspace.Keyspace) resp.Value {
	switch cmd.Kind {
	case Ping:
		if cmd.PingHasMsg {
			return resp.BulkFromBytes(cmd.PingMsg)
		}
		return resp.Simple("PONG")

	case Get:
		data, ok := ks.Get(cmd.Key)
		if !ok {
			return resp.NullBulk()
		}
		return resp.BulkFromBytes(data)

	case Set:
		ks.Set(cmd.Key, cmd.Data)
		return resp.Simple("OK")

	case SetEx:
		ks.SetEx(cmd.Key, cmd.Data, cmd.Seconds)
		return resp.Simple("OK")

	case SetNx:
		if ks.SetNx(cmd.Key, cmd.Data) {
			return resp.Int64(1)
		}
		return resp.Int64(0)

	case Del:
		return resp.Int64(int64(ks.Del(cmd.Keys)))

	case Incr:
		return execIncrBy(ks, cmd.Key, 1)
	case Decr:
		return execIncrBy(ks, cmd.Key, -1)
	case IncrBy:
		return execIncrBy(ks, cmd.Key, cmd.Delta)
	case DecrBy:
		return execIncrBy(ks, cmd.Key, -cmd.Delta)

	case MGet:
		values := ks.MGet(cmd.Keys)
		items := make([]resp.Value, len(values))
		for i, v := range values {
			if v == nil {
				items[i] = resp.NullBulk()
			} else {
				items[i] = resp.BulkFromBytes(v)
			}
		}
		return resp.ArrayOf(items...)

	case MSet:
		ks.MSet(cmd.MSetPairs)
		return resp.Simple("OK")

	case Expire:
		if ks.Expire(cmd.Key, cmd.Seconds) {
			return resp.Int64(1)
		}
		return resp.Int64(0)

	case Ttl:
		return resp.Int64(ks.TTL(cmd.Key))

	case Persist:
		if ks.Persist(cmd.Key) {
			return resp.Int64(1)
		}
		return resp.Int64(0)

	case Keys:
		matched := ks.Keys(cmd.Pattern)
		items := make([]resp.Value, len(matched))
		for i, k := range matched {
			items[i] = resp.BulkFromString(k)
		}
		return resp.ArrayOf(items...)

	default:
		panic(fmt.Sprintf("command: unhandled kind %d", cmd.Kind))
	}
}

func execIncrBy(ks *keyspace.Keyspace, key string, delta int64) resp.Value {
	next, err := ks.IncrBy(key, delta)
	if err != nil {
		switch err {
		case keyspace.ErrNotInteger:
			return resp.Err("ERR value is not an integer or out of range")
		case keyspace.ErrOverflow:
			return resp.Err("ERR increment or decrement would overflow")
		default:
			return resp.Err("ERR " + err.Error())
		}
	}
	return resp.Int64(next)
}
