package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	switchFlagTypeName     = "bool"
	switchAcceptedLiterals = "true, false, yes, no, on, off, 1, 0"
	switchInvalidFormat    = "invalid boolean value %q for --%s; accepted values: %s"
)

var switchLiterals = map[string]bool{
	"true": true, "t": true, "1": true, "yes": true, "y": true, "on": true,
	"false": false, "f": false, "0": false, "no": false, "n": false, "off": false,
}

// parseSwitchLiteral reports the boolean meaning of a flag literal. An empty
// literal means the flag was given bare.
func parseSwitchLiteral(literal string) (bool, bool) {
	normalized := strings.ToLower(strings.TrimSpace(literal))
	if normalized == "" {
		return true, true
	}
	value, known := switchLiterals[normalized]
	return value, known
}

// switchValue is a pflag.Value for on/off flags that accept the literals in
// switchLiterals besides a bare --name.
type switchValue struct {
	name   string
	target *bool
}

func (value *switchValue) Set(literal string) error {
	parsed, known := parseSwitchLiteral(literal)
	if !known {
		return fmt.Errorf(switchInvalidFormat, literal, value.name, switchAcceptedLiterals)
	}
	*value.target = parsed
	return nil
}

func (value *switchValue) String() string {
	if value.target == nil {
		return strconv.FormatBool(false)
	}
	return strconv.FormatBool(*value.target)
}

func (value *switchValue) Type() string {
	return switchFlagTypeName
}

func registerBooleanFlag(flagSet *pflag.FlagSet, target *bool, name string, defaultValue bool, usage string) {
	registerBooleanFlagP(flagSet, target, name, "", defaultValue, usage)
}

func registerBooleanFlagP(flagSet *pflag.FlagSet, target *bool, name string, shorthand string, defaultValue bool, usage string) {
	*target = defaultValue
	flag := flagSet.VarPF(&switchValue{name: name, target: target}, name, shorthand, usage)
	flag.DefValue = strconv.FormatBool(defaultValue)
	flag.NoOptDefVal = strconv.FormatBool(true)
}

// normalizeBooleanFlagArguments rewrites "--name <literal>" as "--name=<literal>"
// for every switch flag of command and its subcommands. A following argument
// that is not a literal stays positional, so "--copy src" lists src.
func normalizeBooleanFlagArguments(command *cobra.Command, arguments []string) []string {
	switches := map[string]struct{}{}
	collectBooleanFlagNames(command, switches)

	normalized := make([]string, 0, len(arguments))
	for index := 0; index < len(arguments); index++ {
		argument := arguments[index]
		if argument == "--" {
			return append(normalized, arguments[index:]...)
		}
		name, isLong := strings.CutPrefix(argument, "--")
		if isLong && !strings.Contains(name, "=") && index+1 < len(arguments) {
			if _, isSwitch := switches[name]; isSwitch {
				next := arguments[index+1]
				if _, known := switchLiterals[strings.ToLower(strings.TrimSpace(next))]; known {
					normalized = append(normalized, "--"+name+"="+next)
					index++
					continue
				}
			}
		}
		normalized = append(normalized, argument)
	}
	return normalized
}

func collectBooleanFlagNames(command *cobra.Command, names map[string]struct{}) {
	record := func(flag *pflag.Flag) {
		if flag.Value.Type() == switchFlagTypeName {
			names[flag.Name] = struct{}{}
		}
	}
	command.PersistentFlags().VisitAll(record)
	command.Flags().VisitAll(record)
	for _, child := range command.Commands() {
		collectBooleanFlagNames(child, names)
	}
}
