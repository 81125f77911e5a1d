package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hnrobert/userdb/internal/auth"
	"github.com/hnrobert/userdb/internal/config"
	"github.com/hnrobert/userdb/internal/userdb"
)

var (
	// Global flags
	verbose    bool
	configPath string
	passwdPath string
	shadowPath string
	groupPath  string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "userdbctl",
	Short: "userdbctl - manage passwd, shadow and group tables",
	Long: `userdbctl reads and mutates the system identity tables (passwd,
shadow, group). Every mutation locks all affected files with the
classic <file>.lock protocol and refuses to touch a file that changed
behind its back.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// listCmd dumps every user and group
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all users and groups",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := loadDB()
		if err != nil {
			return err
		}
		for _, u := range db.AllUsers() {
			fmt.Printf("%s\tuid=%d gid=%d home=%s shell=%s\n",
				u.Name, u.UID, u.GID, u.Home, u.Shell)
		}
		for _, g := range db.AllGroups() {
			fmt.Printf("%s\tgid=%d members=%s\n",
				g.Value.Name, g.Value.GID, strings.Join(g.Value.Members, ","))
		}
		return nil
	},
}

// showCmd prints one user in detail
var showCmd = &cobra.Command{
	Use:   "show [username]",
	Short: "Show one user with shadow and group details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := loadDB()
		if err != nil {
			return err
		}
		u := db.UserByName(args[0])
		if u == nil {
			return fmt.Errorf("user %q: %w", args[0], userdb.ErrNotFound)
		}
		fmt.Printf("user:     %s (uid %d, gid %d)\n", u.Name, u.UID, u.GID)
		if name := u.Gecos.FullName(); name != "" {
			fmt.Printf("name:     %s\n", name)
		}
		fmt.Printf("home:     %s\n", u.Home)
		fmt.Printf("shell:    %s\n", u.Shell)
		fmt.Printf("password: %s\n", describePassword(u))
		for _, m := range u.Groups() {
			fmt.Printf("group:    %s (gid %d, %s)\n",
				m.Group.Value.Name, m.Group.Value.GID, m.Kind)
		}
		return nil
	},
}

var createPassword string

// createCmd adds a user with default settings
var createCmd = &cobra.Command{
	Use:   "create [username]",
	Short: "Create a user with default uid, home and shell",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := loadDB()
		if err != nil {
			return err
		}
		create := userdb.CreateUserArgs{Username: args[0]}
		if createPassword != "" {
			hash, err := auth.Hash(createPassword)
			if err != nil {
				return fmt.Errorf("failed to hash the password: %w", err)
			}
			create.PasswordHash = hash
		}
		u, err := db.NewUser(create)
		if err != nil {
			return err
		}
		logger.Info("created user",
			zap.String("user", u.Value.Name),
			zap.Uint32("uid", u.Value.UID))
		return nil
	},
}

var deleteRemoveHome bool

// deleteCmd removes a user from all three tables
var deleteCmd = &cobra.Command{
	Use:   "delete [username]",
	Short: "Delete a user, their shadow entry and group memberships",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := loadDB()
		if err != nil {
			return err
		}
		u, err := db.DeleteUser(userdb.DeleteUserArgs{
			Username:   args[0],
			RemoveHome: deleteRemoveHome,
		})
		if err != nil {
			return err
		}
		logger.Info("deleted user", zap.String("user", u.Value.Name))
		return nil
	},
}

var newgroupGID uint32

// newgroupCmd adds a group
var newgroupCmd = &cobra.Command{
	Use:   "newgroup [name]",
	Short: "Create a group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := loadDB()
		if err != nil {
			return err
		}
		g, err := db.NewGroup(args[0], newgroupGID)
		if err != nil {
			return err
		}
		logger.Info("created group",
			zap.String("group", g.Value.Name),
			zap.Uint32("gid", g.Value.GID))
		return nil
	},
}

// delgroupCmd removes a group
var delgroupCmd = &cobra.Command{
	Use:   "delgroup [name]",
	Short: "Delete a group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := loadDB()
		if err != nil {
			return err
		}
		g, err := db.DeleteGroup(args[0])
		if err != nil {
			return err
		}
		logger.Info("deleted group", zap.String("group", g.Value.Name))
		return nil
	},
}

func loadDB() (*userdb.DB, error) {
	cfg := config.Default()
	if configPath != "" {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return nil, err
		}
	}
	if passwdPath != "" {
		cfg.Passwd = passwdPath
	}
	if shadowPath != "" {
		cfg.Shadow = shadowPath
	}
	if groupPath != "" {
		cfg.Group = groupPath
	}
	files, err := userdb.NewFiles(cfg.Passwd, cfg.Shadow, cfg.Group, logger)
	if err != nil {
		return nil, err
	}
	return userdb.LoadFiles(files, logger)
}

func describePassword(u *userdb.User) string {
	switch u.Password.Kind {
	case userdb.PasswordShadow:
		if s := u.Shadow(); s != nil {
			return "in shadow: " + s.Password
		}
		return "in shadow (missing entry)"
	case userdb.PasswordDisabled:
		return "disabled"
	default:
		return u.Password.Crypt
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config with table paths")
	rootCmd.PersistentFlags().StringVarP(&passwdPath, "passwd", "p", "", "path to the passwd file")
	rootCmd.PersistentFlags().StringVarP(&shadowPath, "shadow", "s", "", "path to the shadow file")
	rootCmd.PersistentFlags().StringVarP(&groupPath, "group", "g", "", "path to the group file")

	createCmd.Flags().StringVar(&createPassword, "password", "", "initial password (hashed before writing)")
	deleteCmd.Flags().BoolVar(&deleteRemoveHome, "remove-home", false, "also delete the home directory")
	newgroupCmd.Flags().Uint32Var(&newgroupGID, "gid", 0, "gid for the new group")
	_ = newgroupCmd.MarkFlagRequired("gid")

	rootCmd.AddCommand(listCmd, showCmd, createCmd, deleteCmd, newgroupCmd, delgroupCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
