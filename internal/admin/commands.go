package admin

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/engineerhub/engineerhub/internal/server/models"
	"github.com/spf13/cobra"
)

// NewRootCommand assembles the admin command tree. open is called once per
// command that needs the database or the blob store.
func NewRootCommand(open Opener) *cobra.Command {
	root := &cobra.Command{
		Use:   "engineerhub-admin",
		Short: "Administer an EngineerHub deployment",
		Long: `Maintenance commands for EngineerHub.

Available commands:
  migrate  - Apply pending schema migrations
  adduser  - Create an account without going through the API
  orphans  - List or recover stored files that no note references`,
		SilenceUsage: true,
	}
	// Consumed by the config loader; declared so that cobra accepts them.
	root.PersistentFlags().StringP("config", "c", "", "JSON config file")
	root.PersistentFlags().String("envfile", ".env", "dotenv file")

	root.AddCommand(newMigrateCmd(open), newAddUserCmd(open), newOrphansCmd(open))
	return root
}

func withBackend(open Opener, run func(cmd *cobra.Command, args []string, b Backend) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		b, err := open(cmd.Context())
		if err != nil {
			return err
		}
		defer b.Close()
		return run(cmd, args, b)
	}
}

func newMigrateCmd(open Opener) *cobra.Command {
	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: withBackend(open, func(cmd *cobra.Command, _ []string, b Backend) error {
			if err := b.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			return printVersion(cmd, b)
		}),
	}
	migrate.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: withBackend(open, func(cmd *cobra.Command, _ []string, b Backend) error {
			return printVersion(cmd, b)
		}),
	})
	return migrate
}

func printVersion(cmd *cobra.Command, b Backend) error {
	v, err := b.MigrationVersion(cmd.Context())
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version: %d\n", v)
	return nil
}

type addUserFlags struct {
	name, email, role  string
	major, phone       string
	department, office string
	license            string
	uniID              int64
	passwordStdin      bool
}

func newAddUserCmd(open Opener) *cobra.Command {
	var f addUserFlags
	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create an account",
		Long: `Create an account with the given role and profile fields.

The password is read from the terminal, or from the first line of stdin
with --password-stdin.`,
		Args: cobra.NoArgs,
		RunE: withBackend(open, func(cmd *cobra.Command, _ []string, b Backend) error {
			reg, err := f.registration(cmd)
			if err != nil {
				return err
			}
			u, err := b.CreateUser(cmd.Context(), reg)
			if err != nil {
				return fmt.Errorf("create user: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %d (%s, %s)\n", u.ID, u.Name, u.Role())
			return nil
		}),
	}

	fl := cmd.Flags()
	fl.StringVar(&f.name, "name", "", "user name")
	fl.StringVar(&f.email, "email", "", "email address")
	fl.StringVar(&f.role, "role", "", "student, graduate, doctor or institution")
	fl.StringVar(&f.major, "major", "", "major (student, graduate)")
	fl.Int64Var(&f.uniID, "uni-id", 0, "university id (student, graduate)")
	fl.StringVar(&f.phone, "phone", "", "phone number")
	fl.StringVar(&f.department, "department", "", "department (doctor)")
	fl.StringVar(&f.office, "office", "", "office number (doctor)")
	fl.StringVar(&f.license, "license", "", "license (institution)")
	fl.BoolVar(&f.passwordStdin, "password-stdin", false, "read the password from stdin")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func (f *addUserFlags) registration(cmd *cobra.Command) (models.Registration, error) {
	var pw string
	if f.passwordStdin {
		line, err := readLine(cmd.InOrStdin())
		if err != nil {
			return models.Registration{}, fmt.Errorf("read password: %w", err)
		}
		pw = line
	} else {
		b, err := promptPassword(cmd.ErrOrStderr())
		if err != nil {
			return models.Registration{}, fmt.Errorf("read password: %w", err)
		}
		pw = string(b)
	}

	reg := models.Registration{Name: f.name, Email: f.email, Password: pw, Role: f.role}
	changed := cmd.Flags().Changed
	if changed("major") {
		reg.Major = &f.major
	}
	if changed("uni-id") {
		reg.UniID = &f.uniID
	}
	if changed("phone") {
		reg.PhoneNum = &f.phone
	}
	if changed("department") {
		reg.Department = &f.department
	}
	if changed("office") {
		reg.OfficeNum = &f.office
	}
	if changed("license") {
		reg.License = &f.license
	}
	return reg, nil
}

func newOrphansCmd(open Opener) *cobra.Command {
	orphans := &cobra.Command{
		Use:   "orphans",
		Short: "Inspect stored files that no note references",
	}
	orphans.AddCommand(newOrphansListCmd(open), newOrphansRecoverCmd(open))
	return orphans
}

func newOrphansListCmd(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List orphan files",
		Args:  cobra.NoArgs,
		RunE: withBackend(open, func(cmd *cobra.Command, _ []string, b Backend) error {
			report, err := b.ListOrphans(cmd.Context())
			if err != nil {
				return err
			}
			if report.Error != "" {
				return errors.New(report.Error)
			}
			if len(report.Orphans) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no orphan files")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tNAME\tSIZE\tUPLOADED")
			for _, o := range report.Orphans {
				size, uploaded := "-", "-"
				if o.Size != nil {
					size = humanize.IBytes(uint64(*o.Size))
				}
				if o.CreatedAt != nil {
					uploaded = humanize.Time(*o.CreatedAt)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", o.StorageKey, o.DisplayName, size, uploaded)
			}
			return w.Flush()
		}),
	}
}

func newOrphansRecoverCmd(open Opener) *cobra.Command {
	var (
		in     models.RecoverInput
		userID int64
		cName  string
		desc   string
	)
	cmd := &cobra.Command{
		Use:   "recover KEY",
		Short: "Create a note for an orphan file",
		Args:  cobra.ExactArgs(1),
		RunE: withBackend(open, func(cmd *cobra.Command, args []string, b Backend) error {
			in.StorageKey = args[0]
			if cmd.Flags().Changed("course-name") {
				in.Meta.CourseName = &cName
			}
			if cmd.Flags().Changed("description") {
				in.Meta.Description = &desc
			}
			return recoverOrphan(cmd.Context(), cmd, b, in, userID)
		}),
	}

	fl := cmd.Flags()
	fl.Int64Var(&userID, "as", 0, "id of the user the note is attributed to")
	fl.StringVar(&in.FileName, "file-name", "", "file name shown to users (defaults to the key's name)")
	fl.StringVar(&in.Meta.Title, "title", "", "note title")
	fl.StringVar(&in.Meta.CourseCode, "course-code", "", "course code")
	fl.StringVar(&cName, "course-name", "", "course name")
	fl.IntVar(&in.Meta.Year, "year", 0, "academic year")
	fl.StringVar(&in.Meta.InstructorName, "doctor", "", "instructor name")
	fl.StringVar(&desc, "description", "", "description")
	_ = cmd.MarkFlagRequired("as")
	return cmd
}

func recoverOrphan(ctx context.Context, cmd *cobra.Command, b Backend, in models.RecoverInput, userID int64) error {
	caller, err := b.Principal(ctx, userID)
	if err != nil {
		return fmt.Errorf("look up user %d: %w", userID, err)
	}
	note, err := b.RecoverOrphan(ctx, in, caller)
	if err != nil {
		return fmt.Errorf("recover %q: %w", in.StorageKey, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "recovered %s as note %d (%s)\n", note.StorageKey, note.ID, note.FileName)
	return nil
}
