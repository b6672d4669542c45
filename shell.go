package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/chzyer/readline"
	"github.com/kballard/go-shellquote"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/pairofjacks/icm/config"
	"github.com/pairofjacks/icm/equity"
)

type ShellController struct {
	l   *readline.Instance
	cfg *config.Config
	p   *message.Printer

	payouts     []int
	otherStacks []int
	calc        *equity.Calculator
}

func filterInput(r rune) (rune, bool) {
	switch r {
	// block CtrlZ feature
	case readline.CharCtrlZ:
		return r, false
	}
	return r, true
}

func showMessage(msg string, w io.Writer) {
	io.WriteString(w, msg)
	io.WriteString(w, "\n")
}

func usage(w io.Writer) {
	io.WriteString(w, "commands:\n")
	io.WriteString(w, "payouts <p1> <p2> ... - set the payout structure, first place first\n")
	io.WriteString(w, "others <s1> <s2> ... - set the stacks of everyone besides the two tracked players\n")
	io.WriteString(w, "show - print the current payouts and stacks\n")
	io.WriteString(w, "calc <stackA> <stackB> - equity of the two tracked players\n")
	io.WriteString(w, "equities <stackA> <stackB> - equity of every player in the field\n")
	io.WriteString(w, "hist <stackA> <stackB> - histogram of the field's equities\n")
	io.WriteString(w, "set iterations <n> - per-player iteration count for estimated fields\n")
	io.WriteString(w, "set threads <n> - number of simulation workers\n")
	io.WriteString(w, "exit - quit\n")
}

func NewShellController(cfg *config.Config) *ShellController {
	l, err := readline.NewEx(&readline.Config{
		Prompt:          "\033[31micm>\033[0m ",
		HistoryFile:     "/tmp/icm-readline.tmp",
		EOFPrompt:       "exit",
		InterruptPrompt: "^C",

		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	})
	if err != nil {
		panic(err)
	}
	return &ShellController{
		l:   l,
		cfg: cfg,
		p:   message.NewPrinter(language.English),
	}
}

// rebuildCalculator discards the calculator (and with it the result cache)
// whenever the payouts or the fixed stacks change; cached results are only
// valid for a fixed field.
func (sc *ShellController) rebuildCalculator() {
	sc.calc = equity.NewCalculator(sc.otherStacks, sc.payouts)
	sc.calc.SetIterations(sc.cfg.Iterations)
	sc.calc.SetThreads(sc.cfg.Threads)
	log.Debug().Int("numPlayers", sc.calc.NumPlayers()).Msg("rebuilt calculator")
}

func parseInts(args []string) ([]int, error) {
	nums := make([]int, len(args))
	for i, a := range args {
		n, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("bad number %q", a)
		}
		if n < 0 {
			return nil, fmt.Errorf("%q: stacks and payouts cannot be negative", a)
		}
		nums[i] = n
	}
	return nums, nil
}

func (sc *ShellController) parsePair(fields []string) (int, int, error) {
	if len(fields) != 3 {
		return 0, 0, fmt.Errorf("usage: %s <stackA> <stackB>", fields[0])
	}
	nums, err := parseInts(fields[1:])
	if err != nil {
		return 0, 0, err
	}
	if sc.calc == nil {
		sc.rebuildCalculator()
	}
	return nums[0], nums[1], nil
}

func (sc *ShellController) handle(line string) error {
	fields, err := shellquote.Split(line)
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		return nil
	}
	w := sc.l.Stderr()

	switch fields[0] {
	case "help":
		usage(w)

	case "payouts":
		nums, err := parseInts(fields[1:])
		if err != nil {
			return err
		}
		sc.payouts = nums
		sc.rebuildCalculator()
		sc.p.Fprintf(w, "payout pool: %d over %d places\n", lo.Sum(nums), len(nums))

	case "others":
		nums, err := parseInts(fields[1:])
		if err != nil {
			return err
		}
		sc.otherStacks = nums
		sc.rebuildCalculator()
		sc.p.Fprintf(w, "field size: %d players\n", len(nums)+2)

	case "show":
		sc.p.Fprintf(w, "payouts: %v\nother stacks: %v\niterations: %d\nthreads: %d\n",
			sc.payouts, sc.otherStacks, sc.cfg.Iterations, sc.cfg.Threads)

	case "calc":
		stackA, stackB, err := sc.parsePair(fields)
		if err != nil {
			return err
		}
		equityA, equityB := sc.calc.Calculate(stackA, stackB)
		sc.p.Fprintf(w, "player A (stack %d): %.4f\n", stackA, equityA)
		sc.p.Fprintf(w, "player B (stack %d): %.4f\n", stackB, equityB)

	case "equities":
		stackA, stackB, err := sc.parsePair(fields)
		if err != nil {
			return err
		}
		eqs := sc.calc.AllEquities(stackA, stackB)
		stacks := append([]int{stackA, stackB}, sc.otherStacks...)
		for i, eq := range eqs {
			label := fmt.Sprintf("other %d", i-1)
			if i == 0 {
				label = "player A"
			} else if i == 1 {
				label = "player B"
			}
			sc.p.Fprintf(w, "%-10s stack %8d  equity %10.4f\n", label, stacks[i], eq)
		}

	case "hist":
		stackA, stackB, err := sc.parsePair(fields)
		if err != nil {
			return err
		}
		eqs := sc.calc.AllEquities(stackA, stackB)
		h := histogram.Hist(9, eqs)
		return histogram.Fprint(w, h, histogram.Linear(40))

	case "set":
		if len(fields) != 3 {
			return fmt.Errorf("usage: set iterations|threads <n>")
		}
		n, err := strconv.Atoi(fields[2])
		if err != nil || n <= 0 {
			return fmt.Errorf("bad value %q", fields[2])
		}
		switch fields[1] {
		case "iterations":
			sc.cfg.Iterations = n
		case "threads":
			sc.cfg.Threads = n
		default:
			return fmt.Errorf("unknown setting %q", fields[1])
		}
		if sc.calc != nil {
			sc.calc.SetIterations(sc.cfg.Iterations)
			sc.calc.SetThreads(sc.cfg.Threads)
		}

	default:
		return fmt.Errorf("unknown command %q; try help", fields[0])
	}
	return nil
}

func (sc *ShellController) Loop() {
	defer sc.l.Close()
	for {
		line, err := sc.l.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				break
			}
			continue
		} else if err == io.EOF {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "bye" {
			break
		}
		if err := sc.handle(line); err != nil {
			showMessage("error: "+err.Error(), sc.l.Stderr())
		}
	}
	log.Debug().Msg("exiting readline loop")
}
