// Command tools inspects a chat Badger database offline: it walks the
// message timeline and renders each record as a table row. Run it against a
// stopped server; Badger takes an exclusive lock.
package main

import (
	"clchat/domain/chat"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

const contentPreviewLen = 48

func main() {
	dbPath := flag.String("db", "/tmp/clchat/badger", "Path to badger DB")
	// Default scans the timeline; "seen:" shows last-seen records instead.
	prefix := flag.String("prefix", "msg:", "Prefix to scan")
	flag.Parse()

	db, err := badger.Open(badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithLoggingLevel(badger.ERROR))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	fmt.Println(color.New(color.BgBlack, color.FgGreen).Render(
		fmt.Sprintf(" clchat inspector — %s (prefix %q) ", *dbPath, *prefix)))

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Kind", "Timestamp", "Sender", "Receiver", "Lang", "Content", "Reactions"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			rawKey := string(item.Key())

			// The id index duplicates the timeline, skip it.
			if strings.HasPrefix(rawKey, "msgid:") {
				continue
			}

			err := item.Value(func(v []byte) error {
				var msg chat.Message
				if err := json.Unmarshal(v, &msg); err != nil {
					fmt.Printf("Error unmarshaling key %s: %v\n", rawKey, err)
					return nil
				}

				receiver := "*"
				if msg.Receiver != nil {
					receiver = *msg.Receiver
				}

				content := msg.Content
				if msg.Kind != chat.KindText {
					content = fmt.Sprintf("<%s>", msg.Mime)
				}
				if len(content) > contentPreviewLen {
					content = content[:contentPreviewLen] + "…"
				}

				reactions := ""
				for emoji, who := range msg.Reactions {
					reactions += fmt.Sprintf("%s:%d ", emoji, len(who))
				}

				table.Append([]string{
					rawKey,
					string(msg.Kind),
					msg.Timestamp.Format("2006-01-02 15:04:05"),
					msg.Sender,
					receiver,
					msg.Lang,
					content,
					reactions,
				})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		log.Fatal(err)
	}

	table.Render()
}
