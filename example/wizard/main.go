package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/tbxark/formflow/form"
	"github.com/tbxark/formflow/render"
	"github.com/tbxark/formflow/suggest"
)

// appConfig is read from a JSON file when one exists; environment variables
// fill anything the file leaves empty, so `OPENAI_API_KEY=... go run .` works
// without a config file at all.
type appConfig struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
}

func loadConfig(path string) (*appConfig, error) {
	var conf appConfig
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := sonic.Unmarshal(raw, &conf); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, err
	}
	if conf.APIKey == "" {
		conf.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if conf.BaseURL == "" {
		conf.BaseURL = os.Getenv("OPENAI_BASE_URL")
	}
	if conf.Model == "" {
		conf.Model = "gpt-4o-mini"
	}
	if conf.APIKey == "" {
		return nil, errors.New("no api key: set api_key in the config file or OPENAI_API_KEY")
	}
	return &conf, nil
}

func main() {
	conf := flag.String("config", "config.json", "path to config file")
	flag.Parse()
	config, err := loadConfig(*conf)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	err = startApp(context.Background(), config)
	if err != nil {
		log.Fatalf("start app: %v", err)
	}
}

func startApp(ctx context.Context, config *appConfig) error {
	slog.SetLogLoggerLevel(slog.LevelInfo)
	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:  config.APIKey,
		Model:   config.Model,
		BaseURL: config.BaseURL,
	})
	if err != nil {
		return err
	}
	provider, err := suggest.NewToolBasedProvider(cm)
	if err != nil {
		return err
	}

	store := form.New(registrationSchema(), form.WithHooks(form.Hooks{
		OnSuggest: provider,
		OnSubmit: func(ctx context.Context, values map[string]any) error {
			fmt.Println("\n提交成功:")
			for name, value := range values {
				fmt.Printf("  %s = %v\n", name, value)
			}
			return nil
		},
	}))
	defer store.Close()

	nav := render.NewNavigator(store, render.WithHooks(render.Hooks{
		RenderProgress: func(p render.Progress) {
			fmt.Printf("进度: %d/%d (%.0f%%)\n", p.Completed, p.Total, p.Ratio*100)
		},
		RenderPage: func(data render.PageData) {
			fmt.Printf("== 第 %d 页: %s ==\n", data.Index+1, data.Page.Title)
		},
		RenderField: func(data render.FieldData) {
			line := fmt.Sprintf("  %s (%s) = %v", data.Field.Label, data.Field.Name, data.Value)
			if data.Validation != nil && !data.Validation.Valid {
				line += "  [!] " + data.Validation.Message
			}
			if s := data.Suggestion; s != nil && s.Status == suggest.StatusAvailable {
				line += fmt.Sprintf("  [建议: %v (%.0f%%)]", s.SuggestedValue, s.Confidence*100)
			}
			fmt.Println(line)
		},
	}))

	reader := bufio.NewReader(os.Stdin)
	fmt.Println("表单向导。命令: set <字段> <值> | next | prev | submit | accept <字段> | dismiss <字段> | toggle <字段> | undo | redo | quit")
	nav.Render()
	for {
		fmt.Print("> ")
		input, rErr := reader.ReadString('\n')
		if rErr != nil {
			break
		}
		parts := strings.Fields(strings.TrimSpace(input))
		if len(parts) == 0 {
			continue
		}
		switch parts[0] {
		case "quit":
			return nil
		case "set":
			if len(parts) < 3 {
				fmt.Println("用法: set <字段> <值>")
				continue
			}
			store.SetValue(ctx, parts[1], parseValue(strings.Join(parts[2:], " ")), form.SourceUser)
		case "next":
			if !nav.Next(ctx) {
				fmt.Println("无法前进：存在未通过的校验或已是最后一页")
			}
		case "prev":
			nav.Previous()
		case "submit":
			ok, sErr := nav.Submit(ctx)
			if sErr != nil {
				fmt.Printf("提交失败: %v\n", sErr)
			} else if !ok {
				fmt.Println("提交被拒绝：存在未通过的校验")
			} else {
				return nil
			}
		case "accept":
			if len(parts) > 1 {
				store.AcceptSuggestion(ctx, parts[1])
			}
		case "dismiss":
			if len(parts) > 1 {
				store.DismissSuggestion(ctx, parts[1])
			}
		case "toggle":
			if len(parts) > 1 {
				store.ToggleValue(ctx, parts[1])
			}
		case "undo":
			store.Undo()
		case "redo":
			store.Redo()
		default:
			fmt.Println("未知命令")
			continue
		}
		nav.Render()
	}
	return nil
}

func parseValue(raw string) any {
	if raw == "true" {
		return true
	}
	if raw == "false" {
		return false
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}
