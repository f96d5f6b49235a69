package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/asakaida/permcondition/internal/infrastructure/catalog"
	"github.com/asakaida/permcondition/internal/infrastructure/config"
	"github.com/asakaida/permcondition/internal/infrastructure/database"
	"github.com/asakaida/permcondition/internal/repositories/postgres"
	"github.com/asakaida/permcondition/internal/services/condition"
	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	envFlag     string
	dirFlag     string
	outputFlag  string
	migrateFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Permission catalog tool for permcondition",
	Long: `Permission catalog tool for permcondition.
Reads <module>.info.yml and <module>.permissions.yml files, plus optional
roles.yml and users.yml, from a catalog directory.`,
	PersistentPreRunE: initConfig,
	SilenceUsage:      true,
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import the catalog into the database",
	Long:  `Upsert modules, permissions, roles and user role assignments into PostgreSQL.`,
	Args:  cobra.NoArgs,
	RunE:  runImport,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the permission options",
	Long:  `Print the permission options grouped by module, as the user_permission condition offers them.`,
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&envFlag, "env", "e", "dev", "Environment to use (dev, test, prod)")
	rootCmd.PersistentFlags().StringVarP(&dirFlag, "dir", "d", "", "Catalog directory (default: CATALOG_DIR)")

	importCmd.Flags().BoolVar(&migrateFlag, "migrate", false, "Apply pending migrations before importing")
	listCmd.Flags().StringVarP(&outputFlag, "output", "o", "text", "Output format (text, yaml)")

	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(listCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func initConfig(cmd *cobra.Command, args []string) error {
	if err := config.InitConfig(envFlag); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}
	if dirFlag == "" {
		dirFlag = viper.GetString("CATALOG_DIR")
	}
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := cfg.Log.NewLogger()

	c, err := catalog.LoadDir(dirFlag)
	if err != nil {
		return err
	}

	pg, err := database.NewPostgres(cmd.Context(), &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pg.Close()

	if migrateFlag {
		path, err := database.DefaultMigrationsPath()
		if err != nil {
			return err
		}
		if err := pg.RunMigrations(path, logger); err != nil {
			return err
		}
	}

	importer := catalog.NewImporter(
		postgres.NewPostgresModuleRepository(pg.DB),
		postgres.NewPostgresPermissionRepository(pg.DB),
		postgres.NewPostgresRoleRepository(pg.DB),
		postgres.NewPostgresUserRepository(pg.DB),
		logger,
	)
	result, err := importer.Import(cmd.Context(), c)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d modules, %d permissions, %d roles, %d users from %s\n",
		result.Modules, result.Permissions, result.Roles, result.Users, dirFlag)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	c, err := catalog.LoadDir(dirFlag)
	if err != nil {
		return err
	}

	groups, err := condition.NewUserPermission(c, c).BuildOptions(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch outputFlag {
	case "yaml":
		b, err := yaml.Marshal(groups)
		if err != nil {
			return fmt.Errorf("failed to encode options: %w", err)
		}
		_, err = out.Write(b)
		return err
	case "text":
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		for _, g := range groups {
			fmt.Fprintf(w, "%s\n", g.Label)
			for _, opt := range g.Options {
				fmt.Fprintf(w, "  %s\t%s\n", opt.Value, opt.Label)
			}
		}
		return w.Flush()
	default:
		return fmt.Errorf("unknown output format %q", outputFlag)
	}
}
