package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/masterfloor/erp/internal/auth"
	"github.com/masterfloor/erp/internal/database"
	"github.com/masterfloor/erp/internal/validation"
)

func newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
}

func parseIDArg(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func loginCmd() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login USERNAME",
		Short: "Check a username and password",
		Args:  cobra.ExactArgs(1),
		RunE: withDB(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			form := validation.LoginForm{Username: args[0], Password: password}
			if err := validation.Struct(&form); err != nil {
				return err
			}
			user, err := auth.NewService(app.conn, app.cfg.Provisioning).Authenticate(ctx, form.Username, form.Password)
			if auth.IsNotFound(err) {
				return errors.New("invalid username or password")
			}
			if err != nil {
				return err
			}
			fmt.Printf("logged in as %s (id %d, role %s)\n", user.Username, user.ID, user.RoleName)
			return nil
		}),
	}
	cmd.Flags().StringVar(&password, "password", "", "Password")
	return cmd
}

func registerCmd() *cobra.Command {
	var form validation.RegistrationForm
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a partner together with its login",
		RunE: withDB(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			form.ConfirmPassword = form.Password
			if err := validation.Struct(&form); err != nil {
				return err
			}
			reg, err := auth.NewService(app.conn, app.cfg.Provisioning).Register(ctx, form.Request())
			if err != nil {
				return err
			}
			fmt.Printf("registered partner %d with user %s (id %d)\n", reg.PartnerID, reg.Username, reg.UserID)
			return nil
		}),
	}
	f := cmd.Flags()
	f.StringVar(&form.CompanyName, "company", "", "Company name")
	f.StringVar(&form.INN, "inn", "", "Tax id (10 digits)")
	f.StringVar(&form.DirectorName, "director", "", "Director name")
	f.StringVar(&form.Email, "email", "", "Contact email")
	f.StringVar(&form.Phone, "phone", "", "Contact phone")
	f.Int64Var(&form.PartnerTypeID, "type", 0, "Partner type id (default first type)")
	f.StringVar(&form.Username, "username", "", "Login name")
	f.StringVar(&form.Password, "password", "", "Login password")
	return cmd
}

func partnerCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "partner", Short: "Manage partners"}

	list := &cobra.Command{
		Use:   "list",
		Short: "List partners",
		RunE: withDB(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			partners, err := database.NewPartnerStore(app.conn).List(ctx)
			if err != nil {
				return err
			}
			w := newTable()
			fmt.Fprintln(w, "ID\tCOMPANY\tINN\tTYPE\tDIRECTOR\tUSERS\tLOGIN")
			for _, p := range partners {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\t%s\n", p.ID, p.CompanyName, p.INN, p.PartnerTypeName, p.DirectorName, p.UserCount, p.Username)
			}
			return w.Flush()
		}),
	}

	var (
		form   validation.PartnerForm
		noUser bool
	)
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a partner and, unless --no-user, its login",
		RunE: withDB(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			if err := validation.Struct(&form); err != nil {
				return err
			}
			autoUser := app.cfg.Provisioning.AutoUser && !noUser
			res, err := auth.NewProvisioner(app.conn, app.cfg.Provisioning).CreatePartner(ctx, form.Input(), autoUser)
			if err != nil {
				return err
			}
			fmt.Printf("created partner %d\n", res.PartnerID)
			if res.User != nil {
				fmt.Printf("login: %s\npassword: %s\n", res.User.Username, res.User.Password)
			}
			if res.UserErr != nil {
				fmt.Printf("login not created: %v\n", res.UserErr)
			}
			return nil
		}),
	}
	f := add.Flags()
	f.StringVar(&form.CompanyName, "company", "", "Company name")
	f.StringVar(&form.INN, "inn", "", "Tax id (10 or 12 digits)")
	f.StringVar(&form.DirectorName, "director", "", "Director name")
	f.StringVar(&form.Email, "email", "", "Contact email")
	f.StringVar(&form.Phone, "phone", "", "Contact phone")
	f.Int64Var(&form.PartnerTypeID, "type", 1, "Partner type id")
	f.BoolVar(&noUser, "no-user", false, "Do not create a login")

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a partner together with its login",
		Args:  cobra.ExactArgs(1),
		RunE: withDB(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0])
			if err != nil {
				return err
			}
			return database.NewPartnerStore(app.conn).Delete(ctx, id)
		}),
	}

	cmd.AddCommand(list, add, del)
	return cmd
}

func supplierCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "supplier", Short: "Manage suppliers"}

	list := &cobra.Command{
		Use:   "list",
		Short: "List suppliers",
		RunE: withDB(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			suppliers, err := database.NewSupplierStore(app.conn).List(ctx)
			if err != nil {
				return err
			}
			w := newTable()
			fmt.Fprintln(w, "ID\tCOMPANY\tINN\tPHONE")
			for _, s := range suppliers {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", s.ID, s.CompanyName, s.INN, s.ContactPhone)
			}
			return w.Flush()
		}),
	}

	var form validation.SupplierForm
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a supplier",
		RunE: withDB(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			if err := validation.Struct(&form); err != nil {
				return err
			}
			id, err := database.NewSupplierStore(app.conn).Add(ctx, form.Input())
			if err != nil {
				return err
			}
			fmt.Printf("created supplier %d\n", id)
			return nil
		}),
	}
	add.Flags().StringVar(&form.CompanyName, "company", "", "Company name")
	add.Flags().StringVar(&form.INN, "inn", "", "Tax id")
	add.Flags().StringVar(&form.ContactPhone, "phone", "", "Contact phone")

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a supplier",
		Args:  cobra.ExactArgs(1),
		RunE: withDB(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0])
			if err != nil {
				return err
			}
			return database.NewSupplierStore(app.conn).Delete(ctx, id)
		}),
	}

	cmd.AddCommand(list, add, del)
	return cmd
}

func productCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "product", Short: "Manage products"}

	var (
		sortBy string
		desc   bool
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List products",
		RunE: withDB(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			field, err := database.ParseProductSortField(sortBy)
			if err != nil {
				return err
			}
			products, err := database.NewProductStore(app.conn).List(ctx)
			if err != nil {
				return err
			}
			database.SortProducts(products, field, desc)

			w := newTable()
			fmt.Fprintln(w, "ID\tNAME\tTYPE\tPRICE")
			for _, p := range products {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", p.ID, p.Name, p.ProductType, p.Price.StringFixed(2))
			}
			return w.Flush()
		}),
	}
	list.Flags().StringVar(&sortBy, "sort", "id", "Sort by id, name, type or price")
	list.Flags().BoolVar(&desc, "desc", false, "Sort descending")

	var (
		name   string
		typeID int64
		price  string
	)
	update := &cobra.Command{
		Use:   "update ID",
		Short: "Change a product's name, type or price",
		Args:  cobra.ExactArgs(1),
		RunE: withDB(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0])
			if err != nil {
				return err
			}
			products := database.NewProductStore(app.conn)
			current, err := products.GetByID(ctx, id)
			if err != nil {
				return err
			}

			form := validation.ProductForm{Name: current.Name, ProductTypeID: current.ProductTypeID, Price: current.Price}
			if cmd.Flags().Changed("name") {
				form.Name = name
			}
			if cmd.Flags().Changed("type") {
				form.ProductTypeID = typeID
			}
			if cmd.Flags().Changed("price") {
				if form.Price, err = decimal.NewFromString(price); err != nil {
					return fmt.Errorf("invalid price %q", price)
				}
			}
			if err := validation.Struct(&form); err != nil {
				return err
			}
			return products.Update(ctx, id, form.Input())
		}),
	}
	update.Flags().StringVar(&name, "name", "", "Product name")
	update.Flags().Int64Var(&typeID, "type", 0, "Product type id")
	update.Flags().StringVar(&price, "price", "", "Minimum partner price")

	cmd.AddCommand(list, update)
	return cmd
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "Manage logins"}

	list := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: withDB(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			users, err := database.NewUserStore(app.conn).List(ctx)
			if err != nil {
				return err
			}
			w := newTable()
			fmt.Fprintln(w, "ID\tUSERNAME\tROLE\tPARTNER")
			for _, u := range users {
				partner := "-"
				if u.PartnerID != nil {
					partner = strconv.FormatInt(*u.PartnerID, 10)
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", u.ID, u.Username, u.RoleName, partner)
			}
			return w.Flush()
		}),
	}

	var (
		form      validation.UserForm
		partnerID int64
	)
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a staff or partner login",
		RunE: withDB(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			if partnerID > 0 {
				form.PartnerID = &partnerID
			}
			if err := validation.Struct(&form); err != nil {
				return err
			}
			id, err := auth.NewService(app.conn, app.cfg.Provisioning).AddUser(ctx, form.Request())
			if err != nil {
				return err
			}
			fmt.Printf("created user %d\n", id)
			return nil
		}),
	}
	add.Flags().StringVar(&form.Username, "username", "", "Login name")
	add.Flags().StringVar(&form.Password, "password", "", "Password")
	add.Flags().StringVar(&form.Role, "role", "", "Role name (default provisioning.default_role)")
	add.Flags().Int64Var(&partnerID, "partner", 0, "Partner id the login belongs to")

	reset := &cobra.Command{
		Use:   "reset-password ID",
		Short: "Generate a new password for a user",
		Args:  cobra.ExactArgs(1),
		RunE: withDB(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0])
			if err != nil {
				return err
			}
			password, err := auth.NewProvisioner(app.conn, app.cfg.Provisioning).ResetPassword(ctx, id)
			if err != nil {
				return err
			}
			fmt.Printf("new password: %s\n", password)
			return nil
		}),
	}

	cmd.AddCommand(list, add, reset)
	return cmd
}
