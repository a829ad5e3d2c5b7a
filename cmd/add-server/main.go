// Command add-server is the one administrative CLI named in spec.md
// §6: it registers an NNTP server, drives a single group-list fetch
// task through the queue, and exits once the queue drains. The task
// only opens a connection to the server; it sends no LIST command and
// adds no groups. Deleting a server is gated by a local operator's admin
// password (bcrypt-checked, per cmd/usermgr's password-setup flow).
// Modeled on cmd/usermgr's flag-based shape (stdlib flag,
// golang.org/x/term for interactive password entry) from the teacher
// repo, adapted from a user-management tool to a server-registration
// one.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"golang.org/x/term"

	"github.com/go-while/go-pan/internal/adminauth"
	"github.com/go-while/go-pan/internal/queue"
	"github.com/go-while/go-pan/internal/serverreg"
	"github.com/go-while/go-pan/internal/socketdial"
	"github.com/go-while/go-pan/internal/store"
)

func main() {
	tlsFlag := flag.Bool("tls", false, "connect using TLS")
	storeDir := flag.String("store", "./data", "persistence directory (spec.md C9)")
	deleteID := flag.String("delete", "", "delete the server with this id (requires the admin password)")
	flag.Parse()

	dir := store.Dir{Root: *storeDir}

	secrets, err := serverreg.NewMachineSecretStore(dir.MachineSecretPath(), writeFile)
	if err != nil {
		log.Fatalf("add-server: failed to load machine secret: %v", err)
	}
	reg := serverreg.New(
		serverreg.WithSecretStore(secrets),
		serverreg.WithPersist(func(r *serverreg.Registry) error {
			return store.SaveServers(dir, r)
		}),
	)
	if err := store.LoadServers(dir, reg); err != nil {
		log.Fatalf("add-server: failed to load existing servers: %v", err)
	}

	if *deleteID != "" {
		runDelete(dir, reg, *deleteID)
		return
	}

	args := flag.Args()
	if len(args) < 2 || len(args) == 3 || len(args) > 4 {
		fmt.Fprintf(os.Stderr, "usage: %s [-tls] [-store dir] host port [user password]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "       %s [-store dir] -delete id\n", os.Args[0])
		os.Exit(1)
	}

	host := args[0]
	port, err := strconv.Atoi(args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid port %q: %v\n", args[1], err)
		os.Exit(1)
	}

	var user, password string
	if len(args) == 4 {
		user, password = args[2], args[3]
		if password == "" {
			password, err = readPassword("Enter password: ")
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to read password: %v\n", err)
				os.Exit(1)
			}
		}
	}

	id := reg.AddNewServer()
	if err := reg.Mutate(id, func(s *serverreg.Server) {
		s.Host = host
		s.Port = port
		s.MaxConns = 1
		if *tlsFlag {
			s.TLS = serverreg.TLSImplicit
		}
	}); err != nil {
		log.Fatalf("add-server: failed to configure server %s: %v", id, err)
	}
	if user != "" {
		if err := reg.SetCredentials(id, user, password); err != nil {
			log.Fatalf("add-server: failed to store credentials for %s: %v", id, err)
		}
	}

	q := queue.New()
	q.SetOnline(true)
	q.ConfigureServerSlots(id, 1)

	task := &queue.Task{ID: "list-groups-" + id, Kind: "list-groups", ServerID: id}
	q.Insert(task, queue.InsertTop)

	if err := runGroupListFetch(q, reg, id, task); err != nil {
		log.Printf("add-server: group-list fetch failed: %v", err)
		q.Finish(task.ID, queue.StateFailed)
		os.Exit(1)
	}
	q.Finish(task.ID, queue.StateDone)
	fmt.Printf("server %s registered at %s:%d\n", id, host, port)
}

// runDelete gates server deletion behind the local operator's admin
// password (spec.md §6). The first run on a fresh store directory has
// no admin password yet; one is set interactively before the deletion
// proceeds, mirroring cmd/usermgr's create-then-confirm password setup.
func runDelete(dir store.Dir, reg *serverreg.Registry, id string) {
	passwordPath := dir.AdminPasswordPath()

	if !adminauth.HasPassword(passwordPath) {
		fmt.Println("no admin password set yet; set one now to gate destructive operations")
		pw, err := readPassword("New admin password: ")
		if err != nil {
			log.Fatalf("add-server: failed to read admin password: %v", err)
		}
		confirm, err := readPassword("Confirm admin password: ")
		if err != nil {
			log.Fatalf("add-server: failed to read admin password: %v", err)
		}
		if pw != confirm {
			log.Fatal("add-server: passwords do not match")
		}
		if err := adminauth.SetPassword(passwordPath, pw, writeFile); err != nil {
			log.Fatalf("add-server: failed to set admin password: %v", err)
		}
	}

	pw, err := readPassword("Admin password: ")
	if err != nil {
		log.Fatalf("add-server: failed to read admin password: %v", err)
	}
	ok, err := adminauth.Verify(passwordPath, pw)
	if err != nil {
		log.Fatalf("add-server: %v", err)
	}
	if !ok {
		fmt.Fprintln(os.Stderr, "add-server: incorrect admin password")
		os.Exit(1)
	}

	if err := reg.DeleteServer(id); err != nil {
		log.Fatalf("add-server: %v", err)
	}
	fmt.Printf("server %s deleted\n", id)
}

// runGroupListFetch opens the connection for the registered server and
// acquires its connection slot, proving the server is reachable.
// Issuing the NNTP LIST command itself is out of scope (wire-level
// NNTP is not implemented here); the task completes once connectivity
// is established.
func runGroupListFetch(q *queue.Queue, reg *serverreg.Registry, serverID string, task *queue.Task) error {
	srv, ok := reg.Get(serverID)
	if !ok {
		return fmt.Errorf("unknown server %q", serverID)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	release, err := q.AcquireSlot(ctx, serverID)
	if err != nil {
		return err
	}
	defer release()

	q.SetActive(task.ID, true)
	defer q.SetActive(task.ID, false)

	conn, err := socketdial.Connect(ctx, srv.Host, srv.Port, socketdial.Options{
		TLS:             srv.TLS != serverreg.TLSNone,
		CertFingerprint: srv.PinnedCert,
	})
	if err != nil {
		return err
	}
	return conn.Close()
}

func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// writeFile adapts store's atomic write-rename-chmod(0600) protocol to
// the plain path/data signature internal/serverreg and
// internal/adminauth expect, so neither package needs to import store
// directly.
func writeFile(path string, data []byte) error {
	return store.WriteFile(path, func(s *store.Sink) error {
		_, err := s.Write(data)
		return err
	})
}
