package main

import (
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"

	"github.com/aryan0dhankhar/secretsanta/internal/security/auth"
	"github.com/aryan0dhankhar/secretsanta/internal/service"
)

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "setup":
		runSetup(args)
	case "auth":
		handleAuth(args)
	case "user":
		handleUser(args)
	case "draw":
		handleDraw(args)
	case "me":
		handleMe(args)
	case "reset":
		handleReset(args)
	case "admin":
		handleAdmin(args)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func handleAuth(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: santa auth <login|register|logout|who>")
		return
	}

	switch args[0] {
	case "login":
		loginUser(args[1:])
	case "register":
		registerUser(args[1:])
	case "logout":
		logoutUser()
	case "who":
		whoAmI()
	default:
		fmt.Printf("unknown auth command: %s\n", args[0])
	}
}

func handleUser(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: santa user <list|add|delete|activate|deactivate|passwd>")
		return
	}

	switch args[0] {
	case "list":
		listUsers()
	case "add":
		addUser(args[1:])
	case "delete":
		deleteUser(args[1:])
	case "activate":
		setUserActive(args[1:], true)
	case "deactivate":
		setUserActive(args[1:], false)
	case "passwd":
		setUserPassword(args[1:])
	default:
		fmt.Printf("unknown user command: %s\n", args[0])
	}
}

func handleDraw(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: santa draw <list|create|activate|archive|delete|status>")
		return
	}

	switch args[0] {
	case "list":
		listDraws()
	case "create":
		createDraw(args[1:])
	case "activate":
		mutateDraw(args[1:], http.MethodPost, "/activate", "Activated")
	case "archive":
		mutateDraw(args[1:], http.MethodPost, "/archive", "Archived")
	case "delete":
		mutateDraw(args[1:], http.MethodDelete, "", "Deleted")
	case "status":
		drawStatus()
	default:
		fmt.Printf("unknown draw command: %s\n", args[0])
	}
}

func handleMe(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: santa me <show|interests|purchased|history>")
		return
	}

	switch args[0] {
	case "show":
		showMe()
	case "interests":
		setInterests(args[1:])
	case "purchased":
		setPurchased(args[1:])
	case "history":
		pastDraws()
	default:
		fmt.Printf("unknown me command: %s\n", args[0])
	}
}

func handleReset(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: santa reset <request|list|approve|reject>")
		return
	}

	switch args[0] {
	case "request":
		requestReset(args[1:])
	case "list":
		listResets()
	case "approve":
		approveReset(args[1:])
	case "reject":
		rejectReset(args[1:])
	default:
		fmt.Printf("unknown reset command: %s\n", args[0])
	}
}

func handleAdmin(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: santa admin <activity>")
		return
	}

	switch args[0] {
	case "activity":
		showActivity(args[1:])
	default:
		fmt.Printf("unknown admin command: %s\n", args[0])
	}
}

func requireArg(args []string, usage string) string {
	if len(args) < 1 || strings.TrimSpace(args[0]) == "" {
		fmt.Println("Usage: " + usage)
		os.Exit(1)
	}
	return args[0]
}

// Setup and auth commands
func runSetup(args []string) {
	fs := flag.NewFlagSet("setup", flag.ExitOnError)
	password := fs.String("password", "", "admin password (prompted when empty)")
	fs.Parse(args)

	var status struct {
		SetupRequired bool `json:"setup_required"`
	}
	if err := call(http.MethodGet, "/api/setup", nil, &status); err != nil {
		fail(err)
	}
	if !status.SetupRequired {
		fmt.Println("✓ Setup already completed")
		return
	}

	pw, confirm, err := passwordPair(*password)
	if err != nil {
		fail(err)
	}
	if err := call(http.MethodPost, "/api/setup", map[string]string{"password": pw, "password_confirm": confirm}, nil); err != nil {
		fail(err)
	}
	fmt.Println("✓ Admin account created, log in with: santa auth login -username admin")
}

func loginUser(args []string) {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	username := fs.String("username", "", "username")
	password := fs.String("password", "", "password (prompted when empty)")
	fs.Parse(args)

	if *username == "" {
		fmt.Println("Error: username is required")
		fs.PrintDefaults()
		return
	}
	pw := *password
	if pw == "" {
		var err error
		if pw, err = readPassword("Password: "); err != nil {
			fail(err)
		}
	}

	var result service.LoginResult
	if err := call(http.MethodPost, "/api/auth/login", map[string]string{"username": *username, "password": pw}, &result); err != nil {
		fail(err)
	}
	if err := saveToken(result.Token); err != nil {
		fail(err)
	}
	fmt.Printf("✓ Logged in as: %s (%s)\n", result.Username, result.Role)
}

func registerUser(args []string) {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	username := fs.String("username", "", "username")
	password := fs.String("password", "", "password (prompted when empty)")
	fs.Parse(args)

	if *username == "" {
		fmt.Println("Error: username is required")
		fs.PrintDefaults()
		return
	}
	pw, confirm, err := passwordPair(*password)
	if err != nil {
		fail(err)
	}

	var result struct {
		Message string `json:"message"`
	}
	body := map[string]string{"username": *username, "password": pw, "password_confirm": confirm}
	if err := call(http.MethodPost, "/api/auth/register", body, &result); err != nil {
		fail(err)
	}
	fmt.Printf("✓ %s\n", result.Message)
}

func logoutUser() {
	if err := os.Remove(tokenFile()); err != nil && !os.IsNotExist(err) {
		fail(err)
	}
	fmt.Println("✓ Logged out")
}

func whoAmI() {
	token := loadToken()
	if token == "" {
		fmt.Println("Not logged in")
		return
	}
	// the server verifies the signature; here the claims are only displayed
	var claims auth.Claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		fmt.Println("Stored token is unreadable, log in again")
		return
	}
	expires := "unknown"
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Local().Format(time.DateTime)
		if claims.ExpiresAt.Before(time.Now()) {
			expires += " (expired)"
		}
	}
	fmt.Printf("✓ Logged in as %s (%s), token expires %s\n", claims.Username, claims.Role, expires)
}

// User commands
func listUsers() {
	var users []service.UserView
	if err := call(http.MethodGet, "/api/admin/users", nil, &users); err != nil {
		fail(err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "USERNAME\tACTIVE\tCREATED\tINTERESTS")
	for _, u := range users {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", u.Username, yesNo(u.Active), formatDate(u.CreatedAt), u.Interests)
	}
	w.Flush()
}

func addUser(args []string) {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	password := fs.String("password", "", "initial password (generated when empty)")
	fs.Parse(args)
	username := requireArg(fs.Args(), "santa user add [-password pw] <username>")

	var res service.UserResult
	if err := call(http.MethodPost, "/api/admin/users", map[string]string{"username": username, "password": *password}, &res); err != nil {
		fail(err)
	}
	fmt.Printf("✓ User added: %s\n", res.User.Username)
	if res.GeneratedPassword != "" {
		fmt.Printf("  Generated password: %s\n", res.GeneratedPassword)
	}
}

func deleteUser(args []string) {
	username := requireArg(args, "santa user delete <username>")
	if err := call(http.MethodDelete, "/api/admin/users/"+url.PathEscape(username), nil, nil); err != nil {
		fail(err)
	}
	fmt.Printf("✓ User deleted: %s\n", username)
}

func setUserActive(args []string, active bool) {
	username := requireArg(args, "santa user activate|deactivate <username>")
	if err := call(http.MethodPut, "/api/admin/users/"+url.PathEscape(username)+"/active", map[string]bool{"active": active}, nil); err != nil {
		fail(err)
	}
	if active {
		fmt.Printf("✓ User activated: %s\n", username)
	} else {
		fmt.Printf("✓ User deactivated: %s\n", username)
	}
}

func setUserPassword(args []string) {
	fs := flag.NewFlagSet("passwd", flag.ExitOnError)
	password := fs.String("password", "", "new password (generated when empty)")
	fs.Parse(args)
	username := requireArg(fs.Args(), "santa user passwd [-password pw] <username>")

	var res struct {
		GeneratedPassword string `json:"generated_password"`
	}
	if err := call(http.MethodPost, "/api/admin/users/"+url.PathEscape(username)+"/password", map[string]string{"password": *password}, &res); err != nil {
		fail(err)
	}
	fmt.Printf("✓ Password changed for %s\n", username)
	if res.GeneratedPassword != "" {
		fmt.Printf("  Generated password: %s\n", res.GeneratedPassword)
	}
}

// Draw commands
func listDraws() {
	var draws []service.DrawSummary
	if err := call(http.MethodGet, "/api/admin/draws", nil, &draws); err != nil {
		fail(err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tACTIVE\tPARTICIPANTS\tPURCHASED\tDEADLINE\tCREATED")
	for _, d := range draws {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n",
			d.Name, yesNo(d.Active), len(d.Participants), d.PurchasedCount, formatDate(d.Deadline), d.Created.Format(time.DateOnly))
	}
	w.Flush()
}

func createDraw(args []string) {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	name := fs.String("name", "", "draw name")
	participants := fs.String("participants", "", "comma separated usernames")
	budget := fs.String("budget", "", "gift budget (optional)")
	deadline := fs.String("deadline", "", "deadline as YYYY-MM-DD (optional)")
	fs.Parse(args)

	if *name == "" || *participants == "" {
		fmt.Println("Error: name and participants are required")
		fs.PrintDefaults()
		return
	}

	body := map[string]any{
		"name":         *name,
		"participants": strings.Split(*participants, ","),
		"deadline":     *deadline,
	}
	if *budget != "" {
		b, err := strconv.ParseFloat(*budget, 64)
		if err != nil {
			fail(fmt.Errorf("invalid budget %q", *budget))
		}
		body["budget"] = b
	}

	var created struct {
		Name         string   `json:"name"`
		Participants []string `json:"participants"`
	}
	if err := call(http.MethodPost, "/api/admin/draws", body, &created); err != nil {
		fail(err)
	}
	fmt.Printf("✓ Draw created: %s with %d participants (now active)\n", created.Name, len(created.Participants))
}

func mutateDraw(args []string, method, suffix, verb string) {
	name := requireArg(args, "santa draw activate|archive|delete <name>")
	if err := call(method, "/api/admin/draws/"+url.PathEscape(name)+suffix, nil, nil); err != nil {
		fail(err)
	}
	fmt.Printf("✓ %s draw: %s\n", verb, name)
}

func drawStatus() {
	var status service.DrawStatus
	if err := call(http.MethodGet, "/api/admin/status", nil, &status); err != nil {
		fail(err)
	}

	fmt.Printf("Draw: %s (%d/%d purchased, deadline %s)\n",
		status.Draw.Name, status.Draw.PurchasedCount, len(status.Draw.Participants), formatDate(status.Draw.Deadline))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "GIVER\tRECIPIENT\tPURCHASED\tRECIPIENT INTERESTS")
	for _, row := range status.Rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", row.Giver, row.Recipient, yesNo(row.Purchased), row.RecipientInterests)
	}
	w.Flush()
}

// Participant commands
func showMe() {
	var view service.ParticipantView
	if err := call(http.MethodGet, "/api/me", nil, &view); err != nil {
		fail(err)
	}

	fmt.Printf("User:      %s\n", view.Username)
	fmt.Printf("Interests: %s\n", view.Interests)
	if view.Draw == "" {
		fmt.Println("No active draw")
		return
	}
	fmt.Printf("Draw:      %s\n", view.Draw)
	fmt.Printf("You give a gift to: %s\n", view.Recipient)
	if view.RecipientInterests != "" {
		fmt.Printf("Their interests:    %s\n", view.RecipientInterests)
	}
	if view.Budget != nil {
		fmt.Printf("Budget:    %.2f\n", *view.Budget)
	}
	if view.Deadline != nil {
		left := ""
		if view.DaysLeft != nil {
			left = fmt.Sprintf(" (%d days left)", *view.DaysLeft)
		}
		fmt.Printf("Deadline:  %s%s\n", formatDate(view.Deadline), left)
	}
	fmt.Printf("Purchased: %s\n", yesNo(view.Purchased))
}

func setInterests(args []string) {
	text := strings.Join(args, " ")
	var res struct {
		Interests string `json:"interests"`
	}
	if err := call(http.MethodPut, "/api/me/interests", map[string]string{"interests": text}, &res); err != nil {
		fail(err)
	}
	fmt.Printf("✓ Interests saved: %s\n", res.Interests)
}

func setPurchased(args []string) {
	fs := flag.NewFlagSet("purchased", flag.ExitOnError)
	draw := fs.String("draw", "", "draw name (defaults to the active draw)")
	fs.Parse(args)
	value := requireArg(fs.Args(), "santa me purchased [-draw name] <yes|no>")

	var purchased bool
	switch strings.ToLower(value) {
	case "yes", "y", "true":
		purchased = true
	case "no", "n", "false":
	default:
		fail(fmt.Errorf("expected yes or no, got %q", value))
	}

	path := "/api/me/purchase"
	if *draw != "" {
		path = "/api/me/draws/" + url.PathEscape(*draw) + "/purchase"
	}
	if err := call(http.MethodPut, path, map[string]bool{"purchased": purchased}, nil); err != nil {
		fail(err)
	}
	fmt.Printf("✓ Purchased: %s\n", yesNo(purchased))
}

func pastDraws() {
	var past []service.PastDraw
	if err := call(http.MethodGet, "/api/me/draws", nil, &past); err != nil {
		fail(err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DRAW\tRECIPIENT\tPURCHASED\tCREATED")
	for _, d := range past {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.Name, d.Recipient, yesNo(d.Purchased), d.Created.Format(time.DateOnly))
	}
	w.Flush()
}

// Reset commands
func requestReset(args []string) {
	username := requireArg(args, "santa reset request <username>")
	var res struct {
		Message string `json:"message"`
	}
	if err := call(http.MethodPost, "/api/auth/reset-request", map[string]string{"username": username}, &res); err != nil {
		fail(err)
	}
	fmt.Printf("✓ %s\n", res.Message)
}

func listResets() {
	var pending []struct {
		Username    string    `json:"username"`
		RequestedAt time.Time `json:"requested_at"`
	}
	if err := call(http.MethodGet, "/api/admin/reset-requests", nil, &pending); err != nil {
		fail(err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "USERNAME\tREQUESTED")
	for _, p := range pending {
		fmt.Fprintf(w, "%s\t%s\n", p.Username, p.RequestedAt.Local().Format(time.DateTime))
	}
	w.Flush()
}

func approveReset(args []string) {
	fs := flag.NewFlagSet("approve", flag.ExitOnError)
	password := fs.String("password", "", "new password (generated when empty)")
	fs.Parse(args)
	username := requireArg(fs.Args(), "santa reset approve [-password pw] <username>")

	var res struct {
		GeneratedPassword string `json:"generated_password"`
	}
	if err := call(http.MethodPost, "/api/admin/reset-requests/"+url.PathEscape(username)+"/approve", map[string]string{"password": *password}, &res); err != nil {
		fail(err)
	}
	fmt.Printf("✓ Reset approved for %s\n", username)
	if res.GeneratedPassword != "" {
		fmt.Printf("  Generated password: %s\n", res.GeneratedPassword)
	}
}

func rejectReset(args []string) {
	username := requireArg(args, "santa reset reject <username>")
	if err := call(http.MethodPost, "/api/admin/reset-requests/"+url.PathEscape(username)+"/reject", nil, nil); err != nil {
		fail(err)
	}
	fmt.Printf("✓ Reset rejected for %s\n", username)
}

// Admin commands
func showActivity(args []string) {
	fs := flag.NewFlagSet("activity", flag.ExitOnError)
	n := fs.Int("n", 50, "number of recent lines")
	follow := fs.Bool("follow", false, "keep streaming new lines")
	fs.Parse(args)

	if *follow {
		followActivity(*n)
		return
	}

	var res struct {
		Lines []string `json:"lines"`
	}
	if err := call(http.MethodGet, "/api/admin/activity?n="+strconv.Itoa(*n), nil, &res); err != nil {
		fail(err)
	}
	for _, line := range res.Lines {
		fmt.Println(line)
	}
}

func followActivity(n int) {
	base := getAPIURL()
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	q := url.Values{}
	q.Set("n", strconv.Itoa(n))
	q.Set("token", loadToken())

	conn, resp, err := websocket.DefaultDialer.Dial(base+"/ws/admin/activity?"+q.Encode(), nil)
	if err != nil {
		if resp != nil {
			fail(fmt.Errorf("activity stream refused with status %d", resp.StatusCode))
		}
		fail(err)
	}
	defer conn.Close()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			fail(err)
		}
		fmt.Println(string(msg))
	}
}

func printUsage() {
	fmt.Print(`Secret Santa CLI

Usage:
  santa <command> [options]

Commands:
  setup      Create the admin account on a fresh install
  auth       Authentication (login, register, logout, who)
  user       User management (list, add, delete, activate, deactivate, passwd) - admin
  draw       Draw management (list, create, activate, archive, delete, status) - admin
  me         Your own draw (show, interests, purchased, history)
  reset      Password resets (request, list, approve, reject)
  admin      Admin operations (activity [-n 50] [-follow])
  help       Show this help message

Environment Variables:
  SANTA_API_URL    API endpoint (default: http://localhost:8080)
  SANTA_LANG       Preferred language for messages (sv or en)

Examples:
  santa setup
  santa auth login -username admin
  santa user add alice
  santa draw create -name "Christmas 2025" -participants alice,bob,carol -budget 300 -deadline 2025-12-24
  santa me purchased yes
  santa admin activity -follow
`)
}
