package document

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ValentinKolb/docdb/cmd/util"
	"github.com/ValentinKolb/docdb/lib/db"
	"github.com/spf13/cobra"
)

var (
	insertCmd = &cobra.Command{
		Use:   "insert [collection] [document...]",
		Short: "Inserts or replaces documents (extended JSON) in a collection",
		Long:  util.WrapString(`Inserts or replaces documents in a collection. Documents are given as MongoDB extended JSON, e.g. '{"name": "ada"}'. A document with an "_id" replaces the stored document with the same identity.`),
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			returnOld, _ := cmd.Flags().GetBool("return-old")

			documents := make([][]byte, 0, len(args)-1)
			for _, arg := range args[1:] {
				doc, err := util.ParseDocument(arg)
				if err != nil {
					return err
				}
				raw, err := db.EncodeDocument(doc)
				if err != nil {
					return err
				}
				documents = append(documents, raw)
			}

			results, err := rpcStore.Insert(args[0], documents, returnOld)
			if err != nil {
				return err
			}
			for _, r := range results {
				if r.Document == nil {
					fmt.Println(r.ID)
					continue
				}
				if err := printDocument(os.Stdout, r.Document); err != nil {
					return err
				}
			}
			return nil
		},
	}
	updateCmd = &cobra.Command{
		Use:   "update [collection] [filter] [updates]",
		Short: "Merges fields into the documents matching a filter",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := util.ParseDocument(args[1])
			if err != nil {
				return err
			}
			updates, err := util.ParseDocument(args[2])
			if err != nil {
				return err
			}
			limit, _ := cmd.Flags().GetUint32("limit")

			documents, err := rpcStore.Update(args[0], filter, updates, limit)
			if err != nil {
				return err
			}
			return printDocuments(os.Stdout, documents)
		},
	}
	removeCmd = &cobra.Command{
		Use:   "remove [collection] [filter]",
		Short: "Removes the documents matching a filter",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := util.ParseDocument(args[1])
			if err != nil {
				return err
			}
			limit, _ := cmd.Flags().GetUint32("limit")

			count, err := rpcStore.Remove(args[0], filter, limit)
			if err != nil {
				return err
			}
			fmt.Printf("removed %d documents\n", count)
			return nil
		},
	}
	findCmd = &cobra.Command{
		Use:   "find [collection] [filter]",
		Short: "Prints the documents matching a filter (all documents without a filter)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var rawFilter string
			if len(args) == 2 {
				rawFilter = args[1]
			}
			filter, err := util.ParseDocument(rawFilter)
			if err != nil {
				return err
			}
			limit, _ := cmd.Flags().GetUint32("limit")

			documents, err := rpcStore.Find(args[0], filter, limit)
			if err != nil {
				return err
			}
			return printDocuments(os.Stdout, documents)
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [collection] [id]",
		Short: "Reads the document with the given identity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			document, ok, err := rpcStore.Get(args[0], args[1])
			if err != nil {
				return err
			}
			if !ok {
				fmt.Printf("id=%s, found=false\n", args[1])
				return nil
			}
			return printDocument(os.Stdout, document)
		},
	}
	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Shows the configuration of the server and its resident collections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := rpcStore.GetInfo()
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
)

func init() {
	insertCmd.Flags().Bool("return-old", false, util.WrapString("Print the stored documents instead of their identities"))
	updateCmd.Flags().Uint32("limit", 0, util.WrapString("Maximum number of documents to update (0 = unlimited)"))
	removeCmd.Flags().Uint32("limit", 0, util.WrapString("Maximum number of documents to remove (0 = unlimited)"))
	findCmd.Flags().Uint32("limit", 0, util.WrapString("Maximum number of documents to print (0 = unlimited)"))
}

// printDocuments writes one extended JSON document per line
func printDocuments(w io.Writer, documents [][]byte) error {
	for _, raw := range documents {
		if err := printDocument(w, raw); err != nil {
			return err
		}
	}
	return nil
}

func printDocument(w io.Writer, raw []byte) error {
	out, err := util.FormatDocument(raw)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, out)
	return err
}
