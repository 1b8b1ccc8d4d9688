package document

import (
	"github.com/ValentinKolb/docdb/cmd/util"
	"github.com/ValentinKolb/docdb/lib/store"
	"github.com/ValentinKolb/docdb/rpc/client"
	"github.com/spf13/cobra"
)

var (
	rpcStore store.IDocStore

	// DocumentCommands represents the document command group
	DocumentCommands = &cobra.Command{
		Use:               "doc",
		Short:             "Perform document store operations",
		PersistentPreRunE: setupDocClient,
	}
)

func init() {
	// Add common RPC flags to the document commands
	util.SetupRPCClientFlags(DocumentCommands)

	DocumentCommands.AddCommand(insertCmd)
	DocumentCommands.AddCommand(updateCmd)
	DocumentCommands.AddCommand(removeCmd)
	DocumentCommands.AddCommand(findCmd)
	DocumentCommands.AddCommand(getCmd)
	DocumentCommands.AddCommand(infoCmd)
	DocumentCommands.AddCommand(perfTestCmd)
}

// setupDocClient initializes the RPC store client
func setupDocClient(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	config := util.GetClientConfig()

	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	t, err := util.GetTransport()
	if err != nil {
		return err
	}

	rpcStore, err = client.NewRPCStore(
		*config,
		t,
		s,
	)

	return err
}
