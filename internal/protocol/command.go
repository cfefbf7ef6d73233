package protocol

import (
	"errors"
	"fmt"
	"strings"
)

// Command names.
const (
	CmdNewClient     = "newclient"
	CmdRegisterApp   = "registerapp"
	CmdOpen          = "open"
	CmdStore         = "store"
	CmdExists        = "exists"
	CmdGetModifiedOn = "getmodifiedon"
	CmdGetACopy      = "getacopy"
	CmdDiscard       = "discard"
	CmdFindIDs       = "findids"
)

// Commands lists every command name.
var Commands = []string{
	CmdNewClient, CmdRegisterApp, CmdOpen, CmdStore, CmdExists,
	CmdGetModifiedOn, CmdGetACopy, CmdDiscard, CmdFindIDs,
}

// ErrBadArguments is returned when a command's argument list does not
// have the expected shape.
var ErrBadArguments = errors.New("protocol: bad arguments")

// SplitArgs splits s into exactly n comma-separated arguments. The last
// argument receives the remainder of s, commas included.
func SplitArgs(s string, n int) ([]string, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: want %d arguments", ErrBadArguments, n)
	}
	args := strings.SplitN(s, ",", n)
	if len(args) != n {
		return nil, fmt.Errorf("%w: got %d of %d arguments", ErrBadArguments, len(args), n)
	}
	return args, nil
}

// JoinArgs is the inverse of SplitArgs.
func JoinArgs(args ...string) string {
	return strings.Join(args, ",")
}

// Answers of the exists command.
const (
	Yes = "YES"
	No  = "NO"
)

// YesNo maps b to Yes or No.
func YesNo(b bool) string {
	if b {
		return Yes
	}
	return No
}
