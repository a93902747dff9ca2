package cli

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/catom/internal/atom"
	"github.com/roach88/catom/internal/atomerr"
	"github.com/roach88/catom/internal/canon"
	"github.com/roach88/catom/internal/compiler"
)

// TypeInfo describes one compiled type.
type TypeInfo struct {
	Name    string     `json:"name"`
	Base    string     `json:"base,omitempty"`
	Eager   bool       `json:"eager_defaults,omitempty"`
	Dynamic bool       `json:"dynamic_attributes,omitempty"`
	Slots   []SlotInfo `json:"slots"`

	// Fingerprint changes whenever the slot table changes.
	Fingerprint string `json:"fingerprint"`
}

// SlotInfo is one row of a slot table.
type SlotInfo struct {
	Index      int    `json:"index"`
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	Constraint string `json:"constraint"`
	Default    string `json:"default"`
	Setattr    string `json:"setattr"`
	Delattr    string `json:"delattr"`
	Equality   string `json:"equality"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check <schema>",
		Short: "Compile a CUE schema and print its slot tables",
		Long: `Compile a CUE schema file or directory into entity types and print
each type's members in slot order.

Exit codes:
  0 - Schema compiled
  2 - Schema error or unreadable path

Examples:
  catom check ./schema/person.cue
  catom check ./schema --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, args[0], cmd)
		},
	}
}

func runCheck(opts *RootOptions, path string, cmd *cobra.Command) error {
	log := opts.logger()
	log.Debug("compiling schema", "path", path)

	reg, err := compiler.CompileFile(path, compiler.WithTypeOptions(atom.WithLogger(log)))
	if err != nil {
		if opts.Format == "json" {
			_ = writeJSONError(cmd.OutOrStdout(), errorCode(err), err.Error(), compileDetails(err))
		}
		return WrapExitError(ExitCommandError, "schema check failed", err)
	}

	infos, err := describeTypes(reg)
	if err != nil {
		return WrapExitError(ExitCommandError, "schema check failed", err)
	}
	log.Debug("schema compiled", "types", len(infos))
	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), infos)
	}
	return printTypes(cmd.OutOrStdout(), infos)
}

func describeTypes(reg *atom.Registry) ([]TypeInfo, error) {
	types := reg.Types()
	infos := make([]TypeInfo, 0, len(types))
	for _, t := range types {
		info := TypeInfo{
			Name:    t.Name(),
			Eager:   t.EagerDefaults(),
			Dynamic: t.DynamicAttributes(),
			Slots:   make([]SlotInfo, 0, t.NumSlots()),
		}
		if b := t.Base(); b != nil {
			info.Base = b.Name()
		}
		for _, m := range t.Members() {
			info.Slots = append(info.Slots, SlotInfo{
				Index:      m.Index(),
				Name:       m.Name(),
				Kind:       m.Kind(),
				Constraint: m.Constraint().String(),
				Default:    m.DefaultMode().String(),
				Setattr:    m.SetattrMode().String(),
				Delattr:    m.DelattrMode().String(),
				Equality:   m.Equality().String(),
			})
		}
		fp, err := canon.Hash(canon.DomainSchema, info.Slots)
		if err != nil {
			return nil, err
		}
		info.Fingerprint = fp
		infos = append(infos, info)
	}
	return infos, nil
}

func printTypes(w io.Writer, infos []TypeInfo) error {
	for i, info := range infos {
		if i > 0 {
			fmt.Fprintln(w)
		}
		header := info.Name
		if info.Base != "" {
			header += " extends " + info.Base
		}
		fmt.Fprintf(w, "%s (%d slots) %s\n", header, len(info.Slots), shortFingerprint(info.Fingerprint))

		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "  SLOT\tNAME\tKIND\tTYPE\tDEFAULT\tSETATTR\tDELATTR\tEQ")
		for _, s := range info.Slots {
			fmt.Fprintf(tw, "  %d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				s.Index, s.Name, s.Kind, s.Constraint, s.Default, s.Setattr, s.Delattr, s.Equality)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}

// errorCode returns the atomerr code of err, or COMPILE for CUE errors.
func errorCode(err error) string {
	if code, ok := atomerr.CodeOf(err); ok {
		return string(code)
	}
	return "COMPILE"
}

func compileDetails(err error) any {
	var ce *compiler.CompileError
	if !errors.As(err, &ce) {
		return nil
	}
	details := map[string]any{"field": ce.Field}
	if ce.Pos.IsValid() {
		details["position"] = ce.Pos.String()
	}
	return details
}
