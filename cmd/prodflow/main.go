package main

import (
	"context"
	"errors"
	"fmt"
	clog "log"
	"net/http"
	"os"
	"path"
	"time"

	log "github.com/go-kit/kit/log"
	_ "github.com/go-sql-driver/mysql"
	"github.com/kardianos/osext"
	service1 "github.com/kardianos/service"
	group "github.com/oklog/oklog/pkg/group"
	"github.com/spf13/viper"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/atelier-imprim/prodflow/dispatcher"
	"github.com/atelier-imprim/prodflow/event"
	"github.com/atelier-imprim/prodflow/notify"
	"github.com/atelier-imprim/prodflow/push"
	"github.com/atelier-imprim/prodflow/reminder"
	"github.com/atelier-imprim/prodflow/service"
	"github.com/atelier-imprim/prodflow/workflow"
	"github.com/atelier-imprim/prodflow/workflow/repo"
)

//demon logger
var dLogger service1.Logger

type program struct {
	group     *group.Group
	rep       workflow.Repository
	interrupt chan struct{}
	quit      chan struct{}
}

//start os demon or console using kardianos
func main() {
	err := readConfig()
	if err != nil {
		clog.Fatal(err)
		return
	}

	svcConfig := &service1.Config{
		Name:        "Prodflow",
		DisplayName: "Prodflow workflow service",
		Description: "Production flow and urgency notification engine",
	}
	prg := &program{}

	s, err := service1.New(prg, svcConfig)
	if err != nil {
		clog.Fatal(err)
		return
	}
	if len(os.Args) > 1 {
		err = service1.Control(s, os.Args[1])
		if err != nil {
			clog.Fatal(err)
		}
		return
	}
	dLogger, err = s.Logger(nil)
	if err != nil {
		clog.Fatal(err)
	}
	err = s.Run()
	if err != nil {
		dLogger.Error(err)
	}
}

func (p *program) Start(s service1.Service) error {
	g, rep, err := initFlow()
	if err != nil {
		return err
	}

	p.group = g
	p.rep = rep
	p.interrupt = make(chan struct{})
	p.quit = make(chan struct{})

	if service1.Interactive() {
		dLogger.Info("Running in terminal.")
		dLogger.Infof("Valid startup parametrs: %q\n", service1.ControlAction)
	} else {
		dLogger.Info("Starting Prodflow service...")
	}
	// Start should not block. Do the actual work async.
	go p.run()
	return nil
}

func (p *program) run() {
	//close db cnn
	defer func() {
		if p.rep != nil {
			p.rep.Close()
		}
	}()
	running := make(chan struct{})
	//initCancelInterrupt
	p.group.Add(
		func() error {
			select {
			case <-p.interrupt:
				return errors.New("Prodflow: Get interrupt signal")
			case <-running:
				return nil
			}
		}, func(error) {
			close(running)
		})
	dLogger.Info("Prodflow started")
	dLogger.Info(p.group.Run())
	close(p.quit)
}

func (p *program) Stop(s service1.Service) error {
	// Stop should not block. Return with a few seconds.
	dLogger.Info("Prodflow Stopping!")
	//interrupt service
	close(p.interrupt)
	//waite service stops
	<-p.quit
	dLogger.Info("Prodflow stopped")
	return nil
}

func initFlow() (*group.Group, workflow.Repository, error) {
	if viper.GetString("mysql") == "" {
		return nil, nil, errors.New("mysql connection not set")
	}
	if viper.GetString("proxy.address") == "" {
		return nil, nil, errors.New("host:port of the local server not set")
	}

	logger := initLoger(viper.GetString("folders.log"), "prodflow")
	clock := workflow.SystemClock{}

	//create repro
	rep, err := repo.New(viper.GetString("mysql"))
	if err != nil {
		logger.Log("Open database error", err.Error())
		return nil, nil, fmt.Errorf("database connection error: %w", err)
	}

	bus := event.NewBus(log.With(logger, "level", "bus"))
	engine := dispatcher.NewEngine(rep, bus, clock, log.With(logger, "level", "engine"))

	policy := notify.NewPermissionPolicy()
	hub := push.NewHub(policy, clock, viper.GetInt("notify.recent"), log.With(logger, "level", "push"))
	disp := notify.NewDispatcher(bus, hub, clock,
		viper.GetDuration("notify.expiry"), log.With(logger, "level", "notify"))

	sched := reminder.New(rep, bus, clock,
		viper.GetDuration("reminder.interval"), viper.GetDuration("reminder.sweep"),
		log.With(logger, "level", "reminder"))

	g := &group.Group{}

	//init push hub
	g.Add(func() error {
		hub.Run()
		return nil
	}, func(error) {
		hub.Close()
	})

	//init reminder scheduler
	ctx, cancel := context.WithCancel(context.Background())
	g.Add(func() error {
		return sched.Run(ctx)
	}, func(error) {
		cancel()
		sched.Close()
		disp.Close()
	})

	//init api
	acfg := service.Config{
		Engine:    engine,
		Rep:       rep,
		Scheduler: sched,
		Hub:       hub,
		Clock:     clock,
	}
	server := &http.Server{
		Addr:         viper.GetString("proxy.address"),
		Handler:      service.New(&acfg),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  15 * 60 * time.Second,
	}
	g.Add(func() error {
		dLogger.Info(fmt.Sprintf("Starting prodflow api at %s.", server.Addr))
		return server.ListenAndServe()
	}, func(error) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	})

	return g, rep, nil
}

func initLoger(logPath, fileName string) log.Logger {
	var logger log.Logger
	if logPath == "" {
		logger = log.NewLogfmtLogger(os.Stderr)
	} else {
		if fileName == "" {
			fileName = "log"
		}
		p := path.Join(logPath, fmt.Sprintf("%s.log", fileName))
		logger = log.NewLogfmtLogger(&lumberjack.Logger{
			Filename:   p,
			MaxSize:    5, // megabytes
			MaxBackups: 5,
			MaxAge:     60, //days
		})
	}
	logger = log.With(logger, "ts", log.DefaultTimestamp)
	logger = log.With(logger, "caller", log.DefaultCaller)

	return logger
}

//readConfig init/read viper config
func readConfig() error {
	viper.SetDefault("mysql", "root:pass@tcp(127.0.0.1:3306)/prodflow?parseTime=true") //MySQL connection string
	viper.SetDefault("proxy.address", ":8889")                                         //localhost
	viper.SetDefault("reminder.interval", 30*time.Second)                              //per line reminder tick
	viper.SetDefault("reminder.sweep", time.Minute)                                    //active set observation interval
	viper.SetDefault("notify.recent", 10)                                              //per client recent list size
	viper.SetDefault("notify.expiry", 30*time.Minute)                                  //notification display duration
	viper.SetDefault("folders.log", "")                                                //log folder, empty logs to stderr
	viper.SetDefault("debug", false)                                                   //debug mode

	path, err := osext.ExecutableFolder()
	if err != nil {
		path = "."
	}
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	if err := viper.ReadInConfig(); err != nil {
		//config file is optional, defaults cover a local run
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return err
	}
	return nil
}
