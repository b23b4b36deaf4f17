package cmd

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/fortune-max/invoicer/config"
	"github.com/fortune-max/invoicer/database"
	"github.com/fortune-max/invoicer/events"
	"github.com/fortune-max/invoicer/models"
	"github.com/fortune-max/invoicer/repository"
	"github.com/fortune-max/invoicer/service"
)

// app bundles the wired services for command execution
type app struct {
	cfg         *config.Config
	db          *database.DB
	uowFactory  service.UnitOfWorkFactory
	investors   service.InvestorService
	investments service.InvestmentService
	bills       service.BillService
	generation  service.GenerationService
	cashcalls   service.CashCallService
}

// Run wires the application and executes the given subcommand
func Run(ctx context.Context, command string, args []string) error {
	cfg := config.Get()

	log.WithField("environment", cfg.Environment).Info("Starting invoicer")

	db, err := database.NewConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	eventBus := events.NewBus()
	uowFactory := repository.NewUnitOfWorkFactory(db, eventBus)
	calculator := service.NewCalculator(config.DefaultMembershipSchedule(), config.DefaultDiscountSchedule())
	policy := service.NewActiveMemberPolicy()

	a := &app{
		cfg:         cfg,
		db:          db,
		uowFactory:  uowFactory,
		investors:   service.NewInvestorService(uowFactory, calculator),
		investments: service.NewInvestmentService(uowFactory, calculator),
		bills:       service.NewBillService(uowFactory),
		generation:  service.NewGenerationService(uowFactory, calculator, policy),
		cashcalls:   service.NewCashCallService(uowFactory),
	}

	switch command {
	case "add-investor":
		return a.runAddInvestor(ctx, args)
	case "set-active":
		return a.runSetActive(ctx, args)
	case "add-investment":
		return a.runAddInvestment(ctx, args)
	case "ignore-bill":
		return a.runIgnoreBill(ctx, args)
	case "generate":
		return a.runGenerate(ctx, args)
	case "validate":
		return a.runValidate(ctx, args)
	case "send":
		return a.runSend(ctx, args)
	case "daemon":
		return a.runDaemon(ctx)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

func (a *app) runAddInvestor(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("add-investor", flag.ContinueOnError)
	name := fs.String("name", "", "investor name")
	email := fs.String("email", "", "investor email")
	joined := fs.String("joined", "", "join date (YYYY-MM-DD, defaults to today)")
	inactive := fs.Bool("inactive", false, "create as a non-member")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" || *email == "" {
		return fmt.Errorf("both -name and -email are required")
	}

	joinDate := today()
	if *joined != "" {
		var err error
		joinDate, err = time.Parse("2006-01-02", *joined)
		if err != nil {
			return fmt.Errorf("invalid join date %q: %w", *joined, err)
		}
	}

	investor, err := a.investors.CreateInvestor(ctx, *name, *email, joinDate, !*inactive)
	if err != nil {
		return err
	}
	fmt.Printf("Created investor %d (%s)\n", investor.ID, investor.Name)
	return nil
}

func (a *app) runSetActive(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("set-active", flag.ContinueOnError)
	investorID := fs.Int64("investor", 0, "investor id")
	active := fs.Bool("active", true, "target membership state")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *investorID == 0 {
		return fmt.Errorf("-investor is required")
	}

	investor, err := a.investors.SetActiveMember(ctx, *investorID, *active, today())
	if err != nil {
		return err
	}
	fmt.Printf("Investor %d active_member=%t\n", investor.ID, investor.ActiveMember)
	return nil
}

func (a *app) runAddInvestment(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("add-investment", flag.ContinueOnError)
	investorID := fs.Int64("investor", 0, "owning investor id")
	name := fs.String("name", "", "investment name")
	amount := fs.String("amount", "", "total committed amount")
	feePercent := fs.String("fee", "", "yearly fee percent of the total")
	instalments := fs.Int("instalments", 1, "number of yearly instalments")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *investorID == 0 || *name == "" || *amount == "" || *feePercent == "" {
		return fmt.Errorf("-investor, -name, -amount and -fee are required")
	}

	totalAmount, err := decimal.NewFromString(*amount)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", *amount, err)
	}
	fee, err := decimal.NewFromString(*feePercent)
	if err != nil {
		return fmt.Errorf("invalid fee percent %q: %w", *feePercent, err)
	}

	investment := &models.Investment{
		Name:             *name,
		DateCreated:      today(),
		FeePercent:       fee,
		TotalAmount:      totalAmount,
		TotalInstalments: *instalments,
		InvestorID:       *investorID,
	}
	investment, err = a.investments.CreateInvestment(ctx, investment, today())
	if err != nil {
		return err
	}
	fmt.Printf("Created investment %d, first instalment billed at %s\n",
		investment.ID, investment.AmountBilled.StringFixed(2))
	return nil
}

func (a *app) runIgnoreBill(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("ignore-bill", flag.ContinueOnError)
	billID := fs.Int64("bill", 0, "bill id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *billID == 0 {
		return fmt.Errorf("-bill is required")
	}

	uow := a.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	bill, err := uow.BillRepository().GetByID(ctx, *billID)
	uow.Rollback()
	if err != nil {
		return err
	}
	if bill == nil {
		return fmt.Errorf("%w: bill %d", models.ErrNotFound, *billID)
	}

	bill.SetIgnore(true)
	if _, err := a.bills.UpdateBill(ctx, bill); err != nil {
		return err
	}
	fmt.Printf("Bill %d ignored, amount zeroed\n", bill.ID)
	return nil
}

func (a *app) runGenerate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	investorID := fs.Int64("investor", 0, "limit generation to one investor")
	billType := fs.String("type", "", "limit generation to one bill type (MEMBERSHIP or INVESTMENT)")
	lookback := fs.Int("lookback", a.cfg.LookbackYears, "anchor scan window in years")
	dryRun := fs.Bool("dry-run", false, "compute and report without persisting")
	if err := fs.Parse(args); err != nil {
		return err
	}

	opts := service.GenerateOptions{
		InvestorID:    *investorID,
		LookbackYears: *lookback,
		DryRun:        *dryRun,
		Today:         today(),
	}
	switch *billType {
	case "":
	case string(models.BillTypeMembership), string(models.BillTypeInvestment):
		opts.BillType = models.BillType(*billType)
	default:
		return fmt.Errorf("unknown bill type %q", *billType)
	}

	report, err := a.generation.GenerateBills(ctx, opts)
	if err != nil {
		return err
	}
	printReport(report)
	return nil
}

func (a *app) runValidate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	cashcallID := fs.Int64("cashcall", 0, "validate a single cashcall instead of all")
	dryRun := fs.Bool("dry-run", false, "compute and report without persisting")
	if err := fs.Parse(args); err != nil {
		return err
	}

	report, err := a.cashcalls.ValidateCashCalls(ctx, *cashcallID, *dryRun)
	if err != nil {
		return err
	}
	printReport(report)
	return nil
}

func (a *app) runSend(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	cashcallID := fs.Int64("cashcall", 0, "send a single cashcall instead of all")
	dryRun := fs.Bool("dry-run", false, "compute and report without persisting")
	if err := fs.Parse(args); err != nil {
		return err
	}

	report, err := a.cashcalls.SendCashCalls(ctx, *cashcallID, *dryRun, today())
	if err != nil {
		return err
	}
	printReport(report)
	return nil
}

// runDaemon schedules recurring generation and blocks until shutdown
func (a *app) runDaemon(ctx context.Context) error {
	c := cron.New()

	_, err := c.AddFunc(a.cfg.GenerateCron, func() {
		report, err := a.generation.GenerateBills(ctx, service.GenerateOptions{
			LookbackYears: a.cfg.LookbackYears,
			Today:         today(),
		})
		if err != nil {
			log.WithError(err).Error("Scheduled generation run failed")
			return
		}
		for _, line := range report.Lines {
			log.Info(line)
		}
		log.WithFields(log.Fields{
			"billsCreated": report.BillsCreated,
			"failures":     len(report.Failures),
		}).Info("Scheduled generation run finished")
	})
	if err != nil {
		return fmt.Errorf("failed to schedule generation: %w", err)
	}

	log.WithField("schedule", a.cfg.GenerateCron).Info("Generation daemon running")
	c.Start()

	<-ctx.Done()

	log.Info("Shutting down generation daemon")
	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(10 * time.Second):
		log.Warn("Shutdown timeout exceeded")
	}
	return nil
}

// today returns the current UTC calendar date at midnight
func today() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func printReport(report *models.Report) {
	for _, line := range report.Lines {
		fmt.Println(line)
	}
	if report.DryRun {
		fmt.Println("(dry run, nothing persisted)")
	}
	if !report.OK() {
		fmt.Printf("%d item(s) failed\n", len(report.Failures))
	}
}
