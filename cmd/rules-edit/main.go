// 规则编辑工具：对规则文档做命令行 CRUD，与 HTTP 运营面等价；适合脚本化批量维护
package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"recycle-api/internal/rules"
	"recycle-api/internal/zipref"

	"github.com/joho/godotenv"
)

func printHelp() {
	fmt.Println("commands:")
	fmt.Println("  show")
	fmt.Println("  get <tier> <key>")
	fmt.Println("  set <tier> <key> <item>=<text>")
	fmt.Println("  del <tier> <key> [item]")
	fmt.Println("  default <item>=<text>")
	fmt.Println("  save")
	fmt.Println("  migrate")
	fmt.Println("  help | exit")
	fmt.Println("tiers: zips | cities | states | national_default")
}

// splitItem：解析 item=text 形式的赋值参数
func splitItem(s string) (string, string, bool) {
	i := strings.Index(s, "=")
	if i <= 0 {
		return "", "", false
	}
	return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:]), true
}

func printRuleSet(rs rules.RuleSet) {
	keys := make([]string, 0, len(rs))
	for k := range rs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %s: %s\n", k, rs[k])
	}
}

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	rulesPath := os.Getenv("RULES_PATH")
	if rulesPath == "" {
		rulesPath = filepath.Join("data", "rules", "recycling_rules.json")
	}
	st := rules.Open(rulesPath)
	if st.Migrated() {
		fmt.Println("legacy flat document detected; will persist hierarchical shape on save")
	}

	// 邮编校验依赖本地数据集；缺失时降级为仅形状校验
	var checker rules.ZipChecker
	zipPath := os.Getenv("ZIPREF_PATH")
	if zipPath == "" {
		zipPath = filepath.Join("data", "zipref", "uszips.csv")
	}
	if ds, err := zipref.NewDatasetCache(zipPath); err == nil {
		checker = zipref.NewResolver(zipref.NewChain(ds))
	} else {
		fmt.Printf("zipref dataset unavailable (%v); zip keys get shape-only checks\n", err)
	}
	adm := &rules.Admin{Store: st, Zips: checker}

	fmt.Printf("editing %s\n", rulesPath)
	printHelp()
	sc := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !sc.Scan() {
			return
		}
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "exit", "quit":
			return
		case "help":
			printHelp()
		case "show":
			data, err := st.MarshalSnapshot()
			if err != nil {
				fmt.Println("error:", err)
				continue
			}
			fmt.Println(string(data))
		case "save":
			if err := st.Save(); err != nil {
				fmt.Println("error:", err)
			} else {
				fmt.Println("saved", rulesPath)
			}
		case "migrate":
			// 旧版扁平文档的固化：装载时已在内存升级，此处只需落盘
			if !st.Migrated() {
				fmt.Println("document already hierarchical")
				continue
			}
			if err := st.Save(); err != nil {
				fmt.Println("error:", err)
			} else {
				fmt.Println("migrated and saved", rulesPath)
			}
		case "get":
			if len(fields) < 3 {
				printHelp()
				continue
			}
			rs, ok, err := adm.Get(fields[1], fields[2])
			if err != nil {
				fmt.Println("error:", err)
				continue
			}
			if !ok {
				fmt.Println("not found")
				continue
			}
			printRuleSet(rs)
		case "set":
			if len(fields) < 4 {
				printHelp()
				continue
			}
			item, text, ok := splitItem(strings.Join(fields[3:], " "))
			if !ok {
				printHelp()
				continue
			}
			tier, key := fields[1], fields[2]
			rs, _, err := adm.Get(tier, key)
			if err != nil {
				fmt.Println("error:", err)
				continue
			}
			if rs == nil {
				rs = rules.RuleSet{}
			}
			rs[item] = text
			if err := adm.Put(tier, key, rs); err != nil {
				fmt.Println("error:", err)
				continue
			}
			fmt.Printf("set %s/%s %s\n", tier, key, item)
		case "del":
			if len(fields) < 3 {
				printHelp()
				continue
			}
			tier, key := fields[1], fields[2]
			if len(fields) == 3 {
				if err := adm.Delete(tier, key); err != nil {
					fmt.Println("error:", err)
					continue
				}
				fmt.Printf("deleted %s/%s\n", tier, key)
				continue
			}
			rs, ok, err := adm.Get(tier, key)
			if err != nil || !ok {
				fmt.Println("not found")
				continue
			}
			delete(rs, fields[3])
			if err := adm.Put(tier, key, rs); err != nil {
				fmt.Println("error:", err)
				continue
			}
			fmt.Printf("deleted %s/%s %s\n", tier, key, fields[3])
		case "default":
			if len(fields) < 2 {
				printHelp()
				continue
			}
			item, text, ok := splitItem(strings.Join(fields[1:], " "))
			if !ok {
				printHelp()
				continue
			}
			rs, _, err := adm.Get(rules.TierNational, "")
			if err != nil {
				fmt.Println("error:", err)
				continue
			}
			if rs == nil {
				rs = rules.RuleSet{}
			}
			rs[item] = text
			if err := adm.Put(rules.TierNational, "", rs); err != nil {
				fmt.Println("error:", err)
				continue
			}
			fmt.Printf("set national_default %s\n", item)
		default:
			printHelp()
		}
	}
}
