// Command huecheck talks to a Hue bridge the way a voice assistant does. It
// is meant for checking an emulator installation.
package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/amimof/huego"
	"github.com/kr/pretty"
	"github.com/spf13/cobra"
)

type options struct {
	host string
	user string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:          "huecheck",
		Short:        "Exercise a Hue bridge like an assistant would",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&opts.host, "host", "H", "127.0.0.1", "bridge address, host[:port]")
	root.PersistentFlags().StringVarP(&opts.user, "user", "u", os.Getenv("HUECHECK_USER"), "username from pair")

	root.AddCommand(pairCommand(opts), lightsCommand(opts), setCommand(opts))
	return root
}

func (o *options) bridge() (*huego.Bridge, error) {
	if o.user == "" {
		return nil, errors.New("--user is required; run pair first")
	}
	return huego.New(o.host, o.user), nil
}

func pairCommand(opts *options) *cobra.Command {
	var deviceType string
	cmd := &cobra.Command{
		Use:   "pair",
		Short: "Run the link handshake and print the new username",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			username, err := huego.New(opts.host, "").CreateUser(deviceType)
			if err != nil {
				return fmt.Errorf("pairing: %w", err)
			}
			fmt.Println(username)
			return nil
		},
	}
	cmd.Flags().StringVar(&deviceType, "devicetype", "huecheck#cli", "application name sent to the bridge")
	return cmd
}

func lightsCommand(opts *options) *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "lights",
		Short: "List the lights the bridge exposes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := opts.bridge()
			if err != nil {
				return err
			}
			lights, err := b.GetLights()
			if err != nil {
				return fmt.Errorf("listing lights: %w", err)
			}
			sort.Slice(lights, func(i, j int) bool { return lights[i].ID < lights[j].ID })
			if verbose {
				for _, l := range lights {
					pretty.Println(l)
				}
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tTYPE\tON\tBRI\tREACHABLE")
			for _, l := range lights {
				st := l.State
				if st == nil {
					st = &huego.State{}
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%t\t%d\t%t\n", l.ID, l.Name, l.Type, st.On, st.Bri, st.Reachable)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print every field")
	return cmd
}

func setCommand(opts *options) *cobra.Command {
	var on, off bool
	var bri, sat uint8
	var hue, ct uint16

	cmd := &cobra.Command{
		Use:   "set <id>",
		Short: "Change the state of one light",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("light id %q: %w", args[0], err)
			}
			if on && off {
				return errors.New("--on and --off are exclusive")
			}
			b, err := opts.bridge()
			if err != nil {
				return err
			}

			// huego always sends "on", so keep the current value unless asked.
			state := huego.State{On: on}
			if !on && !off {
				light, err := b.GetLight(id)
				if err != nil {
					return fmt.Errorf("reading light %d: %w", id, err)
				}
				if light.State != nil {
					state.On = light.State.On
				}
			}
			flags := cmd.Flags()
			if flags.Changed("bri") {
				state.Bri = bri
			}
			if flags.Changed("hue") {
				state.Hue = hue
			}
			if flags.Changed("sat") {
				state.Sat = sat
			}
			if flags.Changed("ct") {
				state.Ct = ct
			}

			resp, err := b.SetLightState(id, state)
			if err != nil {
				return fmt.Errorf("setting light %d: %w", id, err)
			}
			keys := make([]string, 0, len(resp.Success))
			for k := range resp.Success {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Printf("%s = %v\n", k, resp.Success[k])
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.BoolVar(&on, "on", false, "switch on")
	flags.BoolVar(&off, "off", false, "switch off")
	flags.Uint8Var(&bri, "bri", 0, "brightness, 1-254")
	flags.Uint16Var(&hue, "hue", 0, "hue, 0-65535")
	flags.Uint8Var(&sat, "sat", 0, "saturation, 0-254")
	flags.Uint16Var(&ct, "ct", 0, "color temperature in mireds, 153-500")
	return cmd
}
