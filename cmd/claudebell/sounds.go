package main

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"claudebell/internal/prefs"
	"claudebell/internal/sound"
)

var (
	flagPlay   string
	flagVolume float64
)

var soundsCmd = &cobra.Command{
	Use:   "sounds",
	Short: "List or preview alert sounds",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if flagPlay != "" {
			if !sound.Known(flagPlay) {
				return fmt.Errorf("unknown sound %q", flagPlay)
			}
			volume := cfg.Sound.Volume
			if cmd.Flags().Changed("volume") {
				volume = flagVolume
			}
			return sound.NewCommandPlayer().Play(flagPlay, volume)
		}

		for _, name := range sound.Sounds {
			if name == sound.Resolve(cfg.Sound.Name) {
				fmt.Printf("%s %s\n", styleSuccess.Render("*"), styleValue.Render(name))
			} else {
				fmt.Printf("  %s\n", name)
			}
		}
		fmt.Println()
		fmt.Println(styleHint.Render("  Preview with ") + styleCommand.Render("claudebell sounds --play NAME"))
		fmt.Println(styleHint.Render("  Choose with  ") + styleCommand.Render("claudebell prefs set sound NAME"))
		return nil
	},
}

func init() {
	soundsCmd.Flags().StringVar(&flagPlay, "play", "", "play the named sound")
	soundsCmd.Flags().Float64Var(&flagVolume, "volume", 0.5, "playback volume from 0 to 1")

	prefsCmd.AddCommand(prefsGetCmd)
	prefsCmd.AddCommand(prefsSetCmd)
	prefsCmd.AddCommand(prefsPathCmd)
}

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Read and write stored preferences",
}

var prefsGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print one or all preferences",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := prefs.Open(nil, prefs.DefaultPath())
		if err != nil {
			return err
		}

		if len(args) == 1 {
			v, ok := store.Get(args[0])
			if !ok {
				return fmt.Errorf("preference %q is not set", args[0])
			}
			fmt.Println(v)
			return nil
		}

		keys := store.Keys()
		sort.Strings(keys)
		for _, k := range keys {
			v, _ := store.Get(k)
			fmt.Println(field(k, fmt.Sprint(v)))
		}
		return nil
	},
}

var prefsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Store a preference",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := prefs.Open(nil, prefs.DefaultPath())
		if err != nil {
			return err
		}
		if err := store.Set(args[0], prefs.ParseValue(args[1])); err != nil {
			if errors.Is(err, prefs.ErrBadValue) {
				return fmt.Errorf("cannot store %q: %w", args[1], err)
			}
			return err
		}
		fmt.Printf("%s %s = %s\n", mark(true), args[0], args[1])
		return nil
	},
}

var prefsPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the preferences file location",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(prefs.DefaultPath())
	},
}
