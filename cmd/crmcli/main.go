package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/common-nighthawk/go-figure"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/teamsales/crm-client/crmapi"
	"github.com/teamsales/crm-client/guard"
	"github.com/teamsales/crm-client/internal/config"
	"github.com/teamsales/crm-client/session"
	"github.com/teamsales/crm-client/store"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal().Err(err).Msg("crmcli failed")
	}
}

func run(args []string) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogger(cfg.LogLevel)

	if len(args) == 0 {
		usage()
		return nil
	}
	command, args := args[0], args[1:]

	displayAppname(cfg.AppName)

	api, err := crmapi.New(cfg.APIBaseURL, crmapi.WithTimeout(cfg.HTTPTimeout))
	if err != nil {
		return err
	}
	primary, err := store.NewFileRepo(cfg.DataFolder)
	if err != nil {
		return err
	}
	mirror, err := store.NewCookieMirror(cfg.DataFolder, api.BaseURL(), api.Jar(), cfg.IsProduction())
	if err != nil {
		return err
	}

	nav := newConsoleNavigator(startLocation(command))
	mgr, err := session.NewManager(api, session.Stores{Primary: primary, Mirror: mirror}, nav)
	if err != nil {
		return err
	}
	defer mgr.Close()

	mgr.Restore()

	watcher := guard.NewWatcher(mgr, nav)
	defer watcher.Close()
	watcher.Evaluate()

	ctx := context.Background()

	switch command {
	case "login":
		return loginCommand(ctx, mgr, args)
	case "signup":
		return signupCommand(ctx, mgr, args)
	case "logout":
		mgr.Logout()
		fmt.Println("Logged out.")
		return nil
	case "whoami":
		return whoamiCommand(mgr)
	case "leads":
		return leadsCommand(ctx, api)
	case "products":
		return productsCommand(ctx, api)
	case "salespersons":
		return salespersonsCommand(ctx, api)
	default:
		usage()
		return errors.Errorf("unknown command %q", command)
	}
}

func loginCommand(ctx context.Context, mgr *session.Manager, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	role := fs.String("role", string(session.RoleAdmin), "account role (admin or salesperson)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	sess, err := mgr.Login(ctx, crmapi.Credentials{Email: *email, Password: *password, Role: *role})
	if err != nil {
		return errors.Wrap(err, "login failed")
	}
	fmt.Printf("Logged in as %s (%s) in tenant %s\n", sess.Username, sess.Role, sess.TenantName)
	return nil
}

func signupCommand(ctx context.Context, mgr *session.Manager, args []string) error {
	fs := flag.NewFlagSet("signup", flag.ContinueOnError)
	reg := crmapi.Registration{}
	fs.StringVar(&reg.Username, "username", "", "username")
	fs.StringVar(&reg.Email, "email", "", "account email")
	fs.StringVar(&reg.Password, "password", "", "account password")
	fs.StringVar(&reg.Country, "country", "", "country")
	fs.StringVar(&reg.CountryCode, "country-code", "", "dialing country code")
	fs.StringVar(&reg.ContactNumber, "contact", "", "contact number")
	fs.StringVar(&reg.PromoCode, "promo", "", "promo code (optional)")
	fs.StringVar(&reg.Role, "role", string(session.RoleSalesperson), "account role")
	if err := fs.Parse(args); err != nil {
		return err
	}

	raw, err := mgr.Signup(ctx, reg)
	if err != nil {
		return errors.Wrap(err, "signup failed")
	}
	pretty, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		pretty = raw
	}
	fmt.Printf("Registered:\n%s\n", pretty)
	fmt.Println("Signup does not log you in - run `crmcli login` next.")
	return nil
}

func whoamiCommand(mgr *session.Manager) error {
	sess := mgr.Current()
	if !sess.Valid() {
		fmt.Println("Not logged in.")
		return nil
	}
	fmt.Printf("%s <%s>\nRole:   %s\nTenant: %s (%s)\n", sess.Username, sess.Email, sess.Role, sess.TenantName, sess.TenantID)
	return nil
}

func leadsCommand(ctx context.Context, api *crmapi.Client) error {
	leads, err := api.Leads(ctx)
	if err != nil {
		return errors.Wrap(err, "fetching leads")
	}
	if len(leads) == 0 {
		fmt.Println("No leads.")
		return nil
	}
	for _, lead := range leads {
		fmt.Printf("%-24s %-28s %-12s %s\n", lead.Name, lead.Email, lead.Status, lead.AssignedTo)
	}
	return nil
}

func productsCommand(ctx context.Context, api *crmapi.Client) error {
	products, err := api.Products(ctx)
	if err != nil {
		return errors.Wrap(err, "fetching products")
	}
	if len(products) == 0 {
		fmt.Println("No products.")
		return nil
	}
	for _, product := range products {
		fmt.Printf("%-32s %10.2f %s\n", product.Name, product.Price, product.Currency)
	}
	return nil
}

func salespersonsCommand(ctx context.Context, api *crmapi.Client) error {
	salespersons, err := api.Salespersons(ctx)
	if err != nil {
		return errors.Wrap(err, "fetching salespersons")
	}
	if len(salespersons) == 0 {
		fmt.Println("No salespersons.")
		return nil
	}
	for _, sp := range salespersons {
		fmt.Printf("%-24s %s\n", sp.Username, sp.Email)
	}
	return nil
}

// startLocation maps a command to the page the user would be on in the web
// client, so the route guard and redirect-loop checks behave the same way.
func startLocation(command string) string {
	switch command {
	case "login":
		return session.RouteLogin
	case "signup":
		return session.RouteSignup
	}
	return session.RouteDashboard
}

func setupLogger(level string) {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		parsed = zerolog.InfoLevel
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(parsed)
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}

func usage() {
	fmt.Println(`Usage: crmcli <command> [flags]

Commands:
  login         authenticate and persist the session
  signup        register a new account (does not log in)
  logout        destroy the session
  whoami        show the current session
  leads         list leads for the current tenant
  products      list products for the current tenant
  salespersons  list the sales team for the current tenant`)
}
