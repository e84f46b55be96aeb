// File: main.go

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"grovia-client/pkg/api"
	"grovia-client/pkg/auth"
	"grovia-client/pkg/detection"
	"grovia-client/pkg/format"
	"grovia-client/pkg/history"
	"grovia-client/pkg/knowledge"
	"grovia-client/pkg/models"
	"grovia-client/pkg/storage"
	"grovia-client/pkg/validate"
)

var (
	debugFlag bool
	logger    *slog.Logger
)

// app bundles the wired-up client services. Everything is constructed in
// initApp and passed down explicitly; no package keeps ambient singletons.
type app struct {
	storage   *storage.Store
	settings  *storage.Settings
	creds     *auth.Credentials
	client    *api.Client
	auth      *auth.Store
	detection *detection.Store
	history   *history.Store
	knowledge *knowledge.Client
}

func initApp() (*app, error) {
	store := storage.Open(
		viper.GetString("storage.path"),
		viper.GetString("storage.namespace"),
		viper.GetString("storage.key"),
		logger,
	)

	creds := auth.NewCredentials(store, logger)

	// The session-invalidated hook needs the auth store, which in turn needs
	// the client, so the closure binds the variable before it is assigned.
	var authStore *auth.Store
	client, err := api.New(
		viper.GetString("api.base_url"),
		viper.GetString("api.transport"),
		api.WithTimeout(viper.GetDuration("api.timeout")),
		api.WithTokenSource(creds),
		api.WithLogger(logger),
		api.WithSessionInvalidated(func() {
			if authStore != nil {
				authStore.SessionInvalidated(context.Background())
				fmt.Fprintln(os.Stderr, "Session expired. Please sign in again.")
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("error creating API client: %w", err)
	}

	authStore = auth.NewStore(client, creds, logger)
	authStore.Restore(context.Background())

	return &app{
		storage:   store,
		settings:  storage.NewSettings(store),
		creds:     creds,
		client:    client,
		auth:      authStore,
		detection: detection.NewStore(client, logger),
		history:   history.NewStore(client, viper.GetInt("history.page_size"), logger),
		knowledge: knowledge.NewClient(client, store, viper.GetDuration("knowledge.ttl"), logger),
	}, nil
}

var rootCmd = &cobra.Command{
	Use:   "grovia",
	Short: "Client for the Grovia plant-disease detection service",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Set up logging based on the debug flag
		var logLevel slog.Level
		if debugFlag {
			logLevel = slog.LevelDebug
		} else {
			logLevel = slog.LevelInfo
		}

		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
		slog.SetDefault(logger)
	},
}

var loginCmd = &cobra.Command{
	Use:   "login [email]",
	Short: "Sign in and persist the session",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		app, err := initApp()
		if err != nil {
			logger.Error("Error initializing client", "error", err)
			os.Exit(1)
		}
		defer app.storage.Close()

		password, err := readPassword("Password: ")
		if err != nil {
			logger.Error("Error reading password", "error", err)
			os.Exit(1)
		}

		if err := app.auth.Login(cmd.Context(), args[0], password); err != nil {
			logger.Error("Login failed", "reason", app.auth.Message(), "error", err)
			os.Exit(1)
		}
		fmt.Printf("Signed in as %s\n", app.auth.UserName())
	},
}

var registerCmd = &cobra.Command{
	Use:   "register [email]",
	Short: "Create an account",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		email := args[0]
		if !validate.Email(email) {
			logger.Error("Invalid email address", "email", email)
			os.Exit(1)
		}

		name, _ := cmd.Flags().GetString("name")
		username, _ := cmd.Flags().GetString("username")

		password, err := readPassword("Password: ")
		if err != nil {
			logger.Error("Error reading password", "error", err)
			os.Exit(1)
		}
		if err := validate.Password(password); err != nil {
			logger.Error("Weak password", "error", err)
			os.Exit(1)
		}

		app, err := initApp()
		if err != nil {
			logger.Error("Error initializing client", "error", err)
			os.Exit(1)
		}
		defer app.storage.Close()

		loggedIn, err := app.auth.Register(cmd.Context(), auth.RegisterInput{
			FullName:        name,
			Email:           email,
			Username:        username,
			Password:        password,
			ConfirmPassword: password,
		})
		if err != nil {
			logger.Error("Registration failed", "reason", app.auth.Message(), "error", err)
			os.Exit(1)
		}
		if loggedIn {
			fmt.Printf("Account created, signed in as %s\n", app.auth.UserName())
		} else {
			fmt.Println("Account created. Check your email to verify it, then sign in.")
		}
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and clear the persisted session",
	Run: func(cmd *cobra.Command, args []string) {
		app, err := initApp()
		if err != nil {
			logger.Error("Error initializing client", "error", err)
			os.Exit(1)
		}
		defer app.storage.Close()

		app.auth.Logout(cmd.Context())
		fmt.Println("Signed out")
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	Run: func(cmd *cobra.Command, args []string) {
		app, err := initApp()
		if err != nil {
			logger.Error("Error initializing client", "error", err)
			os.Exit(1)
		}
		defer app.storage.Close()

		if !app.auth.RefreshAuth(cmd.Context()) {
			fmt.Println("Not signed in")
			os.Exit(1)
		}

		user, err := app.auth.CurrentUser(cmd.Context())
		if err != nil {
			logger.Error("Failed to load profile", "reason", app.auth.Message(), "error", err)
			os.Exit(1)
		}
		fmt.Printf("%s <%s>\n", user.Name, user.Email)
	},
}

var detectCmd = &cobra.Command{
	Use:   "detect [image]",
	Short: "Upload a leaf photo and detect its disease",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := args[0]

		if err := validate.ImageFile(path); err != nil {
			logger.Error("Image rejected", "error", err)
			os.Exit(1)
		}
		if err := validate.ImageDimensions(path,
			viper.GetInt("upload.min_width"),
			viper.GetInt("upload.min_height")); err != nil {
			logger.Error("Image rejected", "error", err)
			os.Exit(1)
		}

		app, err := initApp()
		if err != nil {
			logger.Error("Error initializing client", "error", err)
			os.Exit(1)
		}
		defer app.storage.Close()

		result, err := app.detection.Detect(cmd.Context(), path, func(ev api.ProgressEvent) {
			fmt.Printf("\rUploading... %3d%%", ev.Percent)
			if ev.Percent >= 100 {
				fmt.Printf("\rAnalyzing image...    \n")
			}
		})
		if err != nil {
			fmt.Println()
			logger.Error("Detection failed", "reason", app.detection.Message(), "error", err)
			os.Exit(1)
		}

		printDetection(result, app.detection)
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse past detections",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List detection history",
	Run: func(cmd *cobra.Command, args []string) {
		app, err := initApp()
		if err != nil {
			logger.Error("Error initializing client", "error", err)
			os.Exit(1)
		}
		defer app.storage.Close()

		page, _ := cmd.Flags().GetInt("page")
		limit, _ := cmd.Flags().GetInt("limit")
		sort, _ := cmd.Flags().GetString("sort")
		if !cmd.Flags().Changed("sort") {
			sort = app.settings.GetString(cmd.Context(), "history_sort", sort)
		}

		items, err := app.history.Fetch(cmd.Context(), history.FetchOptions{
			Page:  page,
			Limit: limit,
			Sort:  models.SortOrder(sort),
			Reset: true,
		})
		if err != nil {
			logger.Error("Failed to load history", "reason", app.history.Message(), "error", err)
			os.Exit(1)
		}

		if err := app.settings.SetString(cmd.Context(), "history_sort", sort); err != nil {
			logger.Debug("failed to save sort preference", "error", err)
		}

		for _, item := range items {
			conf := format.Confidence(item.Confidence)
			fmt.Printf("%-8s  %-30s  %6s (%s)  %s\n",
				item.HistoryID, format.Truncate(item.DiseaseName, 30),
				conf.Percentage, conf.Label, item.DetectedAt)
		}
		fmt.Println(app.history.PaginationInfo())
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show one history entry",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		app, err := initApp()
		if err != nil {
			logger.Error("Error initializing client", "error", err)
			os.Exit(1)
		}
		defer app.storage.Close()

		entry, err := app.history.Detail(cmd.Context(), args[0])
		if err != nil {
			logger.Error("Failed to load history entry", "error", err)
			os.Exit(1)
		}

		conf := format.Confidence(entry.Confidence)
		fmt.Printf("Disease:     %s (%s)\n", entry.DiseaseName, entry.ScientificName)
		fmt.Printf("Confidence:  %s (%s)\n", conf.Percentage, conf.Label)
		fmt.Printf("Detected:    %s\n", entry.DetectedAt)
		if entry.Description != "" {
			fmt.Printf("Description: %s\n", entry.Description)
		}
		for _, s := range entry.Symptoms {
			fmt.Printf("  - %s\n", s)
		}
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a history entry",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		app, err := initApp()
		if err != nil {
			logger.Error("Error initializing client", "error", err)
			os.Exit(1)
		}
		defer app.storage.Close()

		if err := app.history.Delete(cmd.Context(), args[0]); err != nil {
			logger.Error("Failed to delete history entry", "error", err)
			os.Exit(1)
		}
		fmt.Println("Deleted")
	},
}

var diseasesCmd = &cobra.Command{
	Use:   "diseases [id]",
	Short: "Browse the disease knowledge base",
	Args:  cobra.RangeArgs(0, 1),
	Run: func(cmd *cobra.Command, args []string) {
		app, err := initApp()
		if err != nil {
			logger.Error("Error initializing client", "error", err)
			os.Exit(1)
		}
		defer app.storage.Close()

		if len(args) == 0 {
			diseases, err := app.knowledge.Diseases(cmd.Context())
			if err != nil {
				logger.Error("Failed to load diseases", "error", err)
				os.Exit(1)
			}
			for _, d := range diseases {
				fmt.Printf("%-24s  %-32s  %s\n", d.DiseaseID, d.DiseaseName, d.ScientificName)
			}
			return
		}

		detail, err := app.knowledge.Disease(cmd.Context(), args[0])
		if err != nil {
			logger.Error("Failed to load disease", "id", args[0], "error", err)
			os.Exit(1)
		}
		fmt.Printf("%s (%s)\n%s\n", detail.DiseaseName, detail.ScientificName, detail.Description)
		if len(detail.Symptoms) > 0 {
			fmt.Println("Symptoms:")
			for _, s := range detail.Symptoms {
				fmt.Printf("  - %s\n", s)
			}
		}
		if len(detail.Treatment) > 0 {
			fmt.Println("Treatment:")
			for _, t := range detail.Treatment {
				fmt.Printf("  - %s\n", t)
			}
		}
	},
}

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the backend is reachable",
	Run: func(cmd *cobra.Command, args []string) {
		app, err := initApp()
		if err != nil {
			logger.Error("Error initializing client", "error", err)
			os.Exit(1)
		}
		defer app.storage.Close()

		start := time.Now()
		_, err = app.client.Get(cmd.Context(), "/health-check", nil, api.WithCallTimeout(5*time.Second))
		if err != nil {
			logger.Error("Backend unreachable", "error", err)
			os.Exit(1)
		}
		fmt.Printf("Backend is up (%s)\n", time.Since(start).Round(time.Millisecond))
	},
}

func printDetection(result *models.DetectionResult, store *detection.Store) {
	conf := format.Confidence(result.Confidence)
	fmt.Printf("\nDisease:     %s (%s)\n", result.DiseaseName, result.ScientificName)
	fmt.Printf("Confidence:  %s (%s)\n", conf.Percentage, conf.Label)
	fmt.Printf("Severity:    %s\n", format.Severity(store.DiseaseSeverity()).Label)
	if result.Description != "" {
		fmt.Printf("Description: %s\n", result.Description)
	}
	if len(result.Symptoms) > 0 {
		fmt.Println("Symptoms:")
		for _, s := range result.Symptoms {
			fmt.Printf("  - %s\n", s)
		}
	}
	if treatment := store.Treatment(); treatment != nil && len(treatment.Treatment) > 0 {
		fmt.Println("Recommended treatment:")
		for _, t := range treatment.Treatment {
			fmt.Printf("  - %s\n", t)
		}
	}
}

func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().BoolVarP(&debugFlag, "debug", "d", false, "Enable debug logging")

	registerCmd.Flags().String("name", "", "Full name")
	registerCmd.Flags().String("username", "", "Username")

	historyListCmd.Flags().Int("page", 1, "Page number")
	historyListCmd.Flags().Int("limit", 0, "Items per page")
	historyListCmd.Flags().String("sort", "newest", "Sort order: newest or oldest")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyDeleteCmd)

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(diseasesCmd)
	rootCmd.AddCommand(pingCmd)
}

func initConfig() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.grovia")
	viper.AddConfigPath("/etc/grovia/")

	viper.SetEnvPrefix("grovia")
	viper.AutomaticEnv()

	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	viper.SetDefault("api.base_url", "http://localhost:8000/api/v1")
	viper.SetDefault("api.timeout", 10*time.Second)
	viper.SetDefault("api.transport", "")
	viper.SetDefault("storage.path", filepath.Join(home, ".grovia", "client.db"))
	viper.SetDefault("storage.namespace", "grovia_")
	viper.SetDefault("storage.key", "grovia-secret-key")
	viper.SetDefault("history.page_size", 10)
	viper.SetDefault("knowledge.ttl", time.Hour)
	viper.SetDefault("upload.min_width", validate.DefaultMinWidth)
	viper.SetDefault("upload.min_height", validate.DefaultMinHeight)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Printf("Error reading config file: %v\n", err)
			os.Exit(1)
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
