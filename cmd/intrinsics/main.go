// Command intrinsics bootstraps a realm and prints its builtin containers.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
	"github.com/urfave/cli/v2"

	"github.com/nooga/jsintrinsics/pkg/builtins"
	"github.com/nooga/jsintrinsics/pkg/config"
	"github.com/nooga/jsintrinsics/pkg/intrinsics"
	"github.com/nooga/jsintrinsics/pkg/vm"
)

var (
	configFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "path to " + config.FileName + " (default: search upwards from the working directory)",
	}
	verbosityFlag = &cli.IntFlag{
		Name:    "verbosity",
		Aliases: []string{"v"},
		Value:   -1,
		Usage:   "log verbosity, overriding the configuration file",
	}
	editionFlag = &cli.IntFlag{
		Name:  "edition",
		Usage: "ECMAScript edition to expose, overriding the configuration file",
	}
	featureFlag = &cli.StringSliceFlag{
		Name:  "feature",
		Usage: "enable a staged feature (repeatable)",
	}
	allFlag = &cli.BoolFlag{
		Name:  "all",
		Usage: "include entries disabled in this realm",
	}
)

func main() {
	app := &cli.App{
		Name:  "intrinsics",
		Usage: "inspect the builtin containers installed into a realm",
		Flags: []cli.Flag{configFlag, verbosityFlag, editionFlag, featureFlag},
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "list containers in installation order",
				Action: listContainers,
			},
			{
				Name:      "show",
				Usage:     "show the entries of one container",
				ArgsUsage: "<container>",
				Flags:     []cli.Flag{allFlag},
				Action:    showContainer,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(70)
	}
}

func loadConfig(ctx *cli.Context) (*config.Config, error) {
	var (
		c   *config.Config
		err error
	)
	if path := ctx.String(configFlag.Name); path != "" {
		c, err = config.Load(path)
	} else {
		c, err = config.FindAndLoad(".")
	}
	if err != nil {
		return nil, err
	}
	if ctx.IsSet(editionFlag.Name) {
		c.Realm.EcmaVersion = ctx.Int(editionFlag.Name)
	}
	c.Realm.Features = append(c.Realm.Features, ctx.StringSlice(featureFlag.Name)...)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	c.ConfigureLogging(ctx.Int(verbosityFlag.Name))
	return c, nil
}

func bootstrap(ctx *cli.Context) (*vm.VM, *builtins.RuntimeContext, error) {
	c, err := loadConfig(ctx)
	if err != nil {
		return nil, nil, err
	}
	v := vm.NewVM(c.RealmOptions())
	rt, err := builtins.Initialize(v)
	if err != nil {
		return nil, nil, err
	}
	commonlog.GetLogger("jsintrinsics.cmd").Infof("realm %s: %d containers", v.Realm().ID(), len(rt.Containers()))
	return v, rt, nil
}

func listContainers(ctx *cli.Context) error {
	v, rt, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	opts := v.Realm().Options()
	w := tabwriter.NewWriter(ctx.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tCONTAINER\tENABLED\tTOTAL")
	for i, c := range rt.Containers() {
		enabled := 0
		for _, e := range c.Entries() {
			if intrinsics.Enabled(e, opts) {
				enabled++
			}
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\n", i, c.Name(), enabled, c.Len())
	}
	return w.Flush()
}

func showContainer(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.Exit("usage: intrinsics show <container>", 64)
	}
	v, rt, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	c, ok := rt.Container(ctx.Args().First())
	if !ok {
		return cli.Exit(fmt.Sprintf("no container %q", ctx.Args().First()), 64)
	}
	writeEntries(ctx.App.Writer, c, v.Realm().Options(), ctx.Bool(allFlag.Name))
	return nil
}

func writeEntries(out io.Writer, c *intrinsics.Container, opts vm.RealmOptions, all bool) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tKIND\tARITY\tATTRS\tGATE\tVARIANTS")
	for _, e := range c.Entries() {
		enabled := intrinsics.Enabled(e, opts)
		if !enabled && !all {
			continue
		}
		arity := fmt.Sprint(e.Arity)
		if e.Variadic {
			arity += "+"
		}
		if e.Kind == intrinsics.KindData {
			arity = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", e.Key, e.Kind, arity, e.Attributes, gate(e, enabled), variants(e))
	}
	w.Flush()
}

func gate(e *intrinsics.Entry, enabled bool) string {
	var parts []string
	if e.Since != 0 {
		parts = append(parts, fmt.Sprintf("es%d", e.Since))
	}
	if e.Feature != "" {
		parts = append(parts, e.Feature)
	}
	if !enabled {
		parts = append(parts, "off")
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ",")
}

func variants(e *intrinsics.Entry) string {
	if e.AliasOf != nil {
		return "= " + e.AliasOf.String()
	}
	var names []string
	for _, vr := range e.Call {
		names = append(names, vr.Name)
	}
	for _, vr := range e.Construct {
		names = append(names, "new:"+vr.Name)
	}
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, " ")
}
