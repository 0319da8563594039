package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/protobuf/types/known/structpb"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the client version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tl %s (%s)\n", version, buildDate)
		},
	}
}

func credentialFlags(cmd *cobra.Command) args {
	cmd.Flags().StringP("username", "u", "", "username")
	cmd.Flags().StringP("password", "p", "", "password")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return func(cmd *cobra.Command, _ []string) (map[string]any, error) {
		u, _ := cmd.Flags().GetString("username")
		p, _ := cmd.Flags().GetString("password")
		return map[string]any{"username": u, "password": p}, nil
	}
}

func newRegisterCommand(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "register", Short: "Create an account", Args: cobra.NoArgs}
	cmd.RunE = o.rpc("Register", authNone, credentialFlags(cmd), nil)
	return cmd
}

func newLoginCommand(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "login", Short: "Log in and save the access token", Args: cobra.NoArgs}
	cmd.RunE = o.rpc("Login", authNone, credentialFlags(cmd), func(cmd *cobra.Command, out *structpb.Struct) error {
		f := out.GetFields()
		exp, err := time.Parse(time.RFC3339, f["expires_at"].GetStringValue())
		if err != nil {
			exp = time.Now().Add(15 * time.Minute)
		}
		if err := saveToken(tokenFile{
			AccessToken: f["access_token"].GetStringValue(),
			UserID:      f["user_id"].GetStringValue(),
			ExpiresAt:   exp,
		}); err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), "ok", f["user_id"].GetStringValue())
		return err
	})
	return cmd
}

func newLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved access token",
		Args:  cobra.NoArgs,
		RunE:  func(*cobra.Command, []string) error { return removeToken() },
	}
}

// positional maps argv onto the named request keys.
func positional(keys ...string) args {
	return func(_ *cobra.Command, argv []string) (map[string]any, error) {
		m := make(map[string]any, len(keys))
		for i, k := range keys {
			m[k] = argv[i]
		}
		return m, nil
	}
}

// leaf builds a subcommand taking exactly the named positional arguments.
func leaf(o *rootOptions, use, short, method string, keys ...string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(len(keys)),
		RunE:  o.rpc(method, authRequired, positional(keys...), nil),
	}
}

// withFlags extends a positional builder with string flags copied as-is when set.
func withFlags(base args, flags ...string) args {
	return func(cmd *cobra.Command, argv []string) (map[string]any, error) {
		m, err := base(cmd, argv)
		if err != nil {
			return nil, err
		}
		for _, name := range flags {
			if cmd.Flags().Changed(name) {
				v, _ := cmd.Flags().GetString(name)
				m[name] = v
			}
		}
		return m, nil
	}
}

// ---- trust ----

func newTrustCommand(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "trust", Short: "Manage trust"}

	set := &cobra.Command{
		Use:   "set <user-id> <level>",
		Short: "Trust a user at level 1..5",
		Args:  cobra.ExactArgs(2),
	}
	set.RunE = o.rpc("SetTrust", authRequired, func(_ *cobra.Command, argv []string) (map[string]any, error) {
		level, err := strconv.Atoi(argv[1])
		if err != nil {
			return nil, fmt.Errorf("level: %w", err)
		}
		return map[string]any{"trustee_id": argv[0], "level": level}, nil
	}, nil)

	req := &cobra.Command{
		Use:   "request <user-id>",
		Short: "Ask a user to trust you",
		Args:  cobra.ExactArgs(1),
	}
	req.Flags().String("message", "", "note for the user")
	req.RunE = o.rpc("RequestTrust", authRequired, withFlags(positional("target_id"), "message"), nil)

	cmd.AddCommand(
		set,
		leaf(o, "get <user-id>", "Show the level you gave a user", "GetTrust", "trustee_id"),
		leaf(o, "list", "List users you trust", "ListTrustees"),
		req,
		leaf(o, "deny <request-id>", "Turn a trust request down", "DenyTrustRequest", "request_id"),
		leaf(o, "incoming", "Pending requests addressed to you", "ListIncomingTrustRequests"),
		leaf(o, "outgoing", "Requests you made", "ListOutgoingTrustRequests"),
	)
	return cmd
}

// ---- items ----

func draftFlags(cmd *cobra.Command) {
	cmd.Flags().String("title", "", "title")
	cmd.Flags().String("description", "", "description")
	cmd.Flags().String("category", "", "category")
	cmd.Flags().Int("level", 1, "required trust level 1..5")
	cmd.Flags().Bool("hidden", false, "hide from everyone but you")
}

func draft(base args) args {
	return func(cmd *cobra.Command, argv []string) (map[string]any, error) {
		m, err := base(cmd, argv)
		if err != nil {
			return nil, err
		}
		fs := cmd.Flags()
		m["title"], _ = fs.GetString("title")
		m["description"], _ = fs.GetString("description")
		m["category"], _ = fs.GetString("category")
		m["required_trust_level"], _ = fs.GetInt("level")
		m["hidden"], _ = fs.GetBool("hidden")
		return m, nil
	}
}

func newItemCommand(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "item", Short: "Manage and browse items"}

	add := &cobra.Command{Use: "add", Short: "Add an item", Args: cobra.NoArgs}
	draftFlags(add)
	add.RunE = o.rpc("CreateItem", authRequired, draft(positional()), nil)

	edit := &cobra.Command{Use: "edit <item-id>", Short: "Overwrite an item", Args: cobra.ExactArgs(1)}
	draftFlags(edit)
	edit.RunE = o.rpc("UpdateItem", authRequired, draft(positional("item_id")), nil)

	cmd.AddCommand(
		add,
		edit,
		leaf(o, "rm <item-id>", "Delete an item", "DeleteItem", "item_id"),
		leaf(o, "get <item-id>", "Show an item", "GetItem", "item_id"),
		leaf(o, "mine", "List your items", "ListOwnItems"),
		leaf(o, "visible", "List items you may see", "VisibleItems"),
		leaf(o, "search <query>", "Search items you may see", "SearchItems", "query"),
	)
	return cmd
}

// ---- loans ----

func rangeFlags(cmd *cobra.Command) {
	cmd.Flags().String("start", "", "start (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().String("end", "", "end (YYYY-MM-DD or RFC 3339)")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
}

func newLoanCommand(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "loan", Short: "Borrow and lend"}

	req := &cobra.Command{Use: "request <item-id>", Short: "Ask to borrow an item", Args: cobra.ExactArgs(1)}
	rangeFlags(req)
	req.Flags().String("message", "", "note for the owner")
	req.RunE = o.rpc("CreateLoanRequest", authRequired, withFlags(positional("item_id"), "start", "end", "message"), nil)

	lend := &cobra.Command{Use: "lend <item-id> <borrower-id>", Short: "Record a loan without a request", Args: cobra.ExactArgs(2)}
	rangeFlags(lend)
	lend.RunE = o.rpc("LendDirect", authRequired, withFlags(positional("item_id", "borrower_id"), "start", "end"), nil)

	ret := &cobra.Command{Use: "return <loan-id>", Short: "Mark a loan returned", Args: cobra.ExactArgs(1)}
	ret.Flags().String("at", "", "actual end, defaults to now")
	ret.RunE = o.rpc("MarkReturned", authRequired, func(cmd *cobra.Command, argv []string) (map[string]any, error) {
		m := map[string]any{"loan_id": argv[0]}
		if at, _ := cmd.Flags().GetString("at"); at != "" {
			m["actual_end"] = at
		}
		return m, nil
	}, nil)

	list := &cobra.Command{Use: "list", Short: "List your loans", Args: cobra.NoArgs}
	list.Flags().String("role", "borrower", "lender or borrower")
	list.Flags().String("status", "", "active, overdue or returned")
	list.RunE = o.rpc("ListLoans", authRequired, func(cmd *cobra.Command, _ []string) (map[string]any, error) {
		role, _ := cmd.Flags().GetString("role")
		st, _ := cmd.Flags().GetString("status")
		return map[string]any{"role": role, "status": st}, nil
	}, nil)

	cmd.AddCommand(
		req,
		leaf(o, "approve <request-id>", "Approve a loan request", "ApproveLoanRequest", "request_id"),
		leaf(o, "deny <request-id>", "Deny a loan request", "DenyLoanRequest", "request_id"),
		leaf(o, "incoming", "Pending requests for your items", "ListIncomingLoanRequests"),
		leaf(o, "outgoing", "Requests you made", "ListOutgoingLoanRequests"),
		lend,
		ret,
		leaf(o, "active <item-id>", "Show an item's active loan", "ActiveLoan", "item_id"),
		list,
	)
	return cmd
}

// ---- scan ----

func newScanCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "scan <item-id>",
		Short: "Resolve a scanned item code",
		Args:  cobra.ExactArgs(1),
		RunE:  o.rpc("Scan", authOptional, positional("item_id"), nil),
	}
}
