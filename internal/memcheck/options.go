package memcheck

import (
	"fmt"
)

// Options mirror the valgrind flags the harness runs with.
type Options struct {
	Tool          string
	LeakCheck     bool
	ShowReachable bool
	XML           bool
	XMLFile       string
}

func DefaultOptions(xmlFile string) Options {
	return Options{
		Tool:          "memcheck",
		LeakCheck:     true,
		ShowReachable: true,
		XML:           true,
		XMLFile:       xmlFile,
	}
}

func (options *Options) ToArgs() []string {
	return []string{
		options.ToolArg(),
		options.LeakCheckArg(),
		options.ShowReachableArg(),
		options.XMLArg(),
		options.XMLFileArg(),
	}
}

func (options *Options) ToolArg() string {
	return fmt.Sprintf("--tool=%s", options.Tool)
}

func (options *Options) LeakCheckArg() string {
	return fmt.Sprintf("--leak-check=%s", yesNo(options.LeakCheck))
}

func (options *Options) ShowReachableArg() string {
	return fmt.Sprintf("--show-reachable=%s", yesNo(options.ShowReachable))
}

func (options *Options) XMLArg() string {
	return fmt.Sprintf("--xml=%s", yesNo(options.XML))
}

func (options *Options) XMLFileArg() string {
	return fmt.Sprintf("--xml-file=%s", options.XMLFile)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
