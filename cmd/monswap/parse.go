package main

import (
	"fmt"
	"regexp"
	"strings"
)

// tradeArgs is a parsed "<amount> <token> to <token>" command.
type tradeArgs struct {
	Amount string
	USD    bool
	From   string
	To     string
}

var tradePattern = regexp.MustCompile(`(?i)^(?:swap\s+)?(\$)?(\d[\d,]*(?:\.\d*)?|\.\d+)\s+(\S+)\s+(?:to|for|into)\s+(\S+)$`)

// parseTrade accepts "5 MON to USDC", "$10 MON for USDC" and
// "swap 0.5 WETH into MON". Tokens may be symbols or addresses.
func parseTrade(args []string) (tradeArgs, error) {
	command := strings.Join(strings.Fields(strings.Join(args, " ")), " ")
	m := tradePattern.FindStringSubmatch(command)
	if m == nil {
		return tradeArgs{}, fmt.Errorf("invalid trade %q. Expected: '<amount> <token> to <token>' (e.g. '5 MON to USDC')", command)
	}
	return tradeArgs{
		Amount: m[2],
		USD:    m[1] == "$",
		From:   m[3],
		To:     m[4],
	}, nil
}
