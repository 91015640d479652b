package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ogurasousui/orgchart/internal/adapters/grpc/orgchartpb"
	"github.com/spf13/cobra"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid employee id %q", raw)
	}
	return id, nil
}

func newCreateCmd(a *app) *cobra.Command {
	var reportsTo int64

	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create an employee (omit --reports-to to create the root)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var parent *int64
			if cmd.Flags().Changed("reports-to") {
				parent = &reportsTo
			}
			req := orgchartpb.NewCreateEmployeeRequest(args[0], parent)
			return a.call(cmd.Context(), func(ctx context.Context, c orgchartpb.EmployeeServiceClient) (proto.Message, error) {
				return c.CreateEmployee(ctx, req)
			})
		},
	}

	cmd.Flags().Int64Var(&reportsTo, "reports-to", 0, "manager id")
	return cmd
}

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show an employee with manager and direct reports",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.call(cmd.Context(), func(ctx context.Context, c orgchartpb.EmployeeServiceClient) (proto.Message, error) {
				return c.GetEmployee(ctx, wrapperspb.Int64(id))
			})
		},
	}
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all employees",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.call(cmd.Context(), func(ctx context.Context, c orgchartpb.EmployeeServiceClient) (proto.Message, error) {
				return c.ListEmployees(ctx, &emptypb.Empty{})
			})
		},
	}
}

func newUpdateCmd(a *app) *cobra.Command {
	var (
		name      string
		reportsTo int64
		root      bool
	)

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Rename or reassign an employee",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			var namePtr *string
			if cmd.Flags().Changed("name") {
				namePtr = &name
			}

			var (
				parent       *int64
				reportsToSet bool
			)
			switch {
			case root:
				reportsToSet = true
			case cmd.Flags().Changed("reports-to"):
				parent = &reportsTo
				reportsToSet = true
			}

			req := orgchartpb.NewUpdateEmployeeRequest(id, namePtr, parent, reportsToSet)
			return a.call(cmd.Context(), func(ctx context.Context, c orgchartpb.EmployeeServiceClient) (proto.Message, error) {
				return c.UpdateEmployee(ctx, req)
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().Int64Var(&reportsTo, "reports-to", 0, "new manager id")
	cmd.Flags().BoolVar(&root, "root", false, "promote the employee to root")
	cmd.MarkFlagsMutuallyExclusive("reports-to", "root")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete an employee without direct reports",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.call(cmd.Context(), func(ctx context.Context, c orgchartpb.EmployeeServiceClient) (proto.Message, error) {
				if _, err := c.DeleteEmployee(ctx, wrapperspb.Int64(id)); err != nil {
					return nil, err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "deleted employee %d\n", id)
				return nil, err
			})
		},
	}
}

func newTreeCmd(a *app) *cobra.Command {
	var (
		maxDepth int
		snapshot bool
	)

	cmd := &cobra.Command{
		Use:   "tree ID",
		Short: "Show the subordinate tree rooted at an employee",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if maxDepth < 0 {
				return fmt.Errorf("--max-depth must not be negative")
			}
			req := orgchartpb.NewSubordinateTreeRequest(id, maxDepth, snapshot)
			return a.call(cmd.Context(), func(ctx context.Context, c orgchartpb.EmployeeServiceClient) (proto.Message, error) {
				return c.GetSubordinateTree(ctx, req)
			})
		},
	}

	cmd.Flags().IntVar(&maxDepth, "max-depth", 0, "levels to expand below the root (0 = unlimited)")
	cmd.Flags().BoolVar(&snapshot, "snapshot", false, "read the whole tree in one consistent transaction")
	return cmd
}
