package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/DenzilGreenwood/studio-sub001/internal/auth"
	cr "github.com/DenzilGreenwood/studio-sub001/internal/crypto"
	"github.com/DenzilGreenwood/studio-sub001/internal/escrow"
	"github.com/DenzilGreenwood/studio-sub001/internal/gateway"
	"github.com/DenzilGreenwood/studio-sub001/internal/storage"
)

// inkwellctl is an operator tool that talks straight to the document store.
// Decryption happens locally: the passphrase is prompted, never passed as a
// flag, and only sealed envelopes cross the wire.

type conn struct {
	users *auth.MongoUserStore
	store *storage.MongoStore
	gw    *gateway.Gateway
}

func main() {
	// ---- put ----
	putCmd := flag.NewFlagSet("put", flag.ExitOnError)
	putUser := putCmd.String("user", "", "account username")
	putColl := putCmd.String("coll", "journals", "document collection")
	putID := putCmd.String("id", "", "document id")
	putJSON := putCmd.String("json", "", "record body as JSON")
	putMerge := putCmd.Bool("merge", false, "merge into an existing record")
	putMongo := mongoFlags(putCmd)

	// ---- get ----
	getCmd := flag.NewFlagSet("get", flag.ExitOnError)
	getUser := getCmd.String("user", "", "account username")
	getColl := getCmd.String("coll", "journals", "document collection")
	getID := getCmd.String("id", "", "document id")
	getMongo := mongoFlags(getCmd)

	// ---- list ----
	listCmd := flag.NewFlagSet("list", flag.ExitOnError)
	listUser := listCmd.String("user", "", "account username")
	listColl := listCmd.String("coll", "journals", "document collection")
	listOrder := listCmd.String("order", "", "order by field (createdAt, updatedAt)")
	listDesc := listCmd.Bool("desc", false, "descending order")
	listLimit := listCmd.Int64("limit", 0, "max results (0 = all)")
	listMongo := mongoFlags(listCmd)

	// ---- trash ----
	trashCmd := flag.NewFlagSet("trash", flag.ExitOnError)
	trashUser := trashCmd.String("user", "", "account username")
	trashColl := trashCmd.String("coll", "journals", "document collection")
	trashID := trashCmd.String("id", "", "document id")
	trashMongo := mongoFlags(trashCmd)

	// ---- restore ----
	restoreCmd := flag.NewFlagSet("restore", flag.ExitOnError)
	restoreUser := restoreCmd.String("user", "", "account username")
	restoreID := restoreCmd.String("id", "", "document id")
	restoreTo := restoreCmd.String("to", "journals", "collection to restore into")
	restoreMongo := mongoFlags(restoreCmd)

	// ---- escrow ----
	escrowCmd := flag.NewFlagSet("escrow", flag.ExitOnError)
	escrowUser := escrowCmd.String("user", "", "account username")
	escrowMongo := escrowCmd.String("mongo", "mongodb://localhost:27017", "MongoDB URI")
	escrowDB := escrowCmd.String("db", "inkwell", "Mongo database name")

	// ---- redeem ----
	redeemCmd := flag.NewFlagSet("redeem", flag.ExitOnError)
	redeemUser := redeemCmd.String("user", "", "account username")
	redeemKey := redeemCmd.String("key", "", "64-hex recovery key")
	redeemMongo := redeemCmd.String("mongo", "mongodb://localhost:27017", "MongoDB URI")
	redeemDB := redeemCmd.String("db", "inkwell", "Mongo database name")

	if len(os.Args) < 2 {
		usage()
		return
	}

	switch os.Args[1] {
	case "put":
		_ = putCmd.Parse(os.Args[2:])
		c, err := dial(*putMongo.uri, *putMongo.db)
		dieIf(err)
		dieIf(cmdPut(c, *putUser, *putColl, *putID, *putJSON, *putMerge))

	case "get":
		_ = getCmd.Parse(os.Args[2:])
		c, err := dial(*getMongo.uri, *getMongo.db)
		dieIf(err)
		dieIf(cmdGet(c, *getUser, *getColl, *getID))

	case "list":
		_ = listCmd.Parse(os.Args[2:])
		c, err := dial(*listMongo.uri, *listMongo.db)
		dieIf(err)
		dieIf(cmdList(c, *listUser, *listColl, *listOrder, *listDesc, *listLimit))

	case "trash":
		_ = trashCmd.Parse(os.Args[2:])
		c, err := dial(*trashMongo.uri, *trashMongo.db)
		dieIf(err)
		dieIf(cmdTrash(c, *trashUser, *trashColl, *trashID))

	case "restore":
		_ = restoreCmd.Parse(os.Args[2:])
		c, err := dial(*restoreMongo.uri, *restoreMongo.db)
		dieIf(err)
		dieIf(cmdRestore(c, *restoreUser, *restoreID, *restoreTo))

	case "escrow":
		_ = escrowCmd.Parse(os.Args[2:])
		c, err := dial(*escrowMongo, *escrowDB)
		dieIf(err)
		dieIf(cmdEscrow(c, *escrowUser))

	case "redeem":
		_ = redeemCmd.Parse(os.Args[2:])
		c, err := dial(*redeemMongo, *redeemDB)
		dieIf(err)
		dieIf(cmdRedeem(c, *redeemUser, *redeemKey))

	default:
		usage()
	}
}

func usage() {
	fmt.Print(`inkwellctl commands:

  put     --user alice --coll journals --id <ID> --json '{"text":"..."}' [--merge]
  get     --user alice --coll journals --id <ID>
  list    --user alice --coll journals [--order updatedAt --desc --limit 20]
  trash   --user alice --coll journals --id <ID>
  restore --user alice --id <ID> --to journals
  escrow  --user alice
  redeem  --user alice --key <64-hex recovery key>

Common flags: --mongo mongodb://localhost:27017 --db inkwell
`)
}

type mongoOpts struct {
	uri *string
	db  *string
}

func mongoFlags(fs *flag.FlagSet) mongoOpts {
	return mongoOpts{
		uri: fs.String("mongo", "mongodb://localhost:27017", "MongoDB URI"),
		db:  fs.String("db", "inkwell", "Mongo database name"),
	}
}

func dial(uri, db string) (*conn, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store, err := storage.NewMongoStore(ctx, uri, db, "documents")
	if err != nil {
		return nil, err
	}
	users, err := auth.NewMongoUserStore(ctx, uri, db, "users")
	if err != nil {
		return nil, err
	}

	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	return &conn{users: users, store: store, gw: gateway.New(store, log)}, nil
}

// openSession prompts for the passphrase and derives the content key with the
// account's stored KDF parameters.
func openSession(c *conn, username string) (*gateway.Session, error) {
	if username == "" {
		return nil, errors.New("--user required")
	}
	u, err := c.users.FindByUsername(username)
	if err != nil {
		return nil, err
	}
	pass, err := promptSecret("Passphrase: ")
	if err != nil {
		return nil, err
	}
	defer cr.Zero(pass)
	return gateway.NewSession(username, string(pass), cr.KDFParams{
		Iterations: u.KDFIterations,
		Salt:       u.KDFSalt,
	})
}

func cmdPut(c *conn, username, coll, id, body string, merge bool) error {
	if id == "" {
		return errors.New("--id required")
	}
	var rec gateway.Record
	if err := json.Unmarshal([]byte(body), &rec); err != nil {
		return fmt.Errorf("--json: %w", err)
	}
	sess, err := openSession(c, username)
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := c.gw.Save(context.Background(), sess, coll, id, rec, merge); err != nil {
		return err
	}
	fmt.Println("Saved:", id)
	return nil
}

func cmdGet(c *conn, username, coll, id string) error {
	if id == "" {
		return errors.New("--id required")
	}
	sess, err := openSession(c, username)
	if err != nil {
		return err
	}
	defer sess.Close()

	rec, err := c.gw.Get(context.Background(), sess, coll, id)
	if err != nil {
		return err
	}
	b, _ := json.MarshalIndent(rec, "", "  ")
	fmt.Println(string(b))
	return nil
}

func cmdList(c *conn, username, coll, order string, desc bool, limit int64) error {
	sess, err := openSession(c, username)
	if err != nil {
		return err
	}
	defer sess.Close()

	results, err := c.gw.Query(context.Background(), sess, coll, storage.Query{
		OrderBy: order,
		Desc:    desc,
		Limit:   limit,
	})
	if err != nil {
		return err
	}
	for _, res := range results {
		if res.Err != nil {
			fmt.Printf("%s  <undecryptable: %v>\n", res.ID, res.Err)
			continue
		}
		b, _ := json.Marshal(res.Record)
		fmt.Printf("%s  %s\n", res.ID, b)
	}
	return nil
}

func cmdTrash(c *conn, username, coll, id string) error {
	if id == "" {
		return errors.New("--id required")
	}
	sess, err := openSession(c, username)
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := c.gw.MoveToTrash(context.Background(), sess, coll, id); err != nil {
		return err
	}
	fmt.Println("Moved to trash:", id)
	return nil
}

func cmdRestore(c *conn, username, id, target string) error {
	if id == "" {
		return errors.New("--id required")
	}
	sess, err := openSession(c, username)
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := c.gw.RestoreFromTrash(context.Background(), sess, id, target); err != nil {
		return err
	}
	fmt.Println("Restored", id, "into", target)
	return nil
}

// cmdEscrow issues a fresh recovery key, escrows the prompted passphrase
// under it, and prints the key exactly once. Fails if a blob already exists;
// recovery material is write-once.
func cmdEscrow(c *conn, username string) error {
	if username == "" {
		return errors.New("--user required")
	}
	pass, err := promptSecret("Passphrase to escrow: ")
	if err != nil {
		return err
	}
	defer cr.Zero(pass)

	key, err := escrow.Issue()
	if err != nil {
		return err
	}
	blob, err := escrow.Escrow(string(pass), key)
	if err != nil {
		return err
	}
	path := gateway.RecoveryBlobPath(username)
	if err := c.store.PutRecoveryBlob(context.Background(), path, blob); err != nil {
		return err
	}
	fmt.Println("Recovery key (shown once, store it safely):", key)
	return nil
}

// cmdRedeem recovers the passphrase from the escrowed blob and prints it to
// the terminal. Nothing is written anywhere.
func cmdRedeem(c *conn, username, key string) error {
	if username == "" {
		return errors.New("--user required")
	}
	if key == "" {
		return errors.New("--key required")
	}
	blob, err := c.store.GetRecoveryBlob(context.Background(), gateway.RecoveryBlobPath(username))
	if errors.Is(err, storage.ErrNotFound) {
		return escrow.ErrNoRecoveryData
	}
	if err != nil {
		return err
	}
	passphrase, err := escrow.Redeem(blob, key)
	if err != nil {
		return err
	}
	fmt.Println("Recovered passphrase:", passphrase)
	return nil
}

func promptSecret(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, err
	}
	return secret, nil
}

func dieIf(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
