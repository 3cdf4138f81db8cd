package main

import (
	"github.com/tbxark/formflow/schema"
)

func intPtr(n int) *int { return &n }

func registrationSchema() *schema.Schema {
	return &schema.Schema{
		Version: "1.0",
		Title:   "会议报名",
		Pages: []schema.Page{
			{
				ID:    "basic",
				Title: "基本信息",
				Fields: []schema.Field{
					{
						Name:     "name",
						Type:     "text",
						Label:    "姓名",
						Required: true,
						Validation: &schema.ValidationSpec{
							MinLength: intPtr(2),
							MaxLength: intPtr(50),
						},
					},
					{
						Name:     "email",
						Type:     "email",
						Label:    "邮箱",
						Required: true,
						Validation: &schema.ValidationSpec{
							Email: true,
						},
					},
					{
						Name:  "company",
						Type:  "text",
						Label: "公司",
					},
					{
						Name:      "title",
						Type:      "text",
						Label:     "职位",
						DependsOn: []string{"company"},
						Suggest: &schema.SuggestSpec{
							Guidance: "根据公司名称推测一个常见职位",
						},
					},
					{
						Name:  "needs_travel",
						Type:  "checkbox",
						Label: "需要差旅安排",
					},
				},
			},
			{
				ID:    "travel",
				Title: "差旅信息",
				ShowIf: &schema.Condition{
					Field: "needs_travel",
					Op:    schema.OpEquals,
					Value: true,
				},
				Fields: []schema.Field{
					{
						Name:     "hotel_nights",
						Type:     "number",
						Label:    "住宿晚数",
						Required: true,
						Validation: &schema.ValidationSpec{
							Min: floatPtr(1),
							Max: floatPtr(14),
						},
					},
					{
						Name:  "dietary",
						Type:  "text",
						Label: "饮食偏好",
						Suggest: &schema.SuggestSpec{
							Guidance: "根据已有信息推测饮食偏好，无法判断时不要给出建议",
						},
					},
				},
			},
			{
				ID:    "confirm",
				Title: "确认提交",
				Fields: []schema.Field{
					{
						Name:  "notes",
						Type:  "textarea",
						Label: "备注",
						Validation: &schema.ValidationSpec{
							MaxLength: intPtr(500),
						},
					},
				},
			},
		},
	}
}

func floatPtr(f float64) *float64 { return &f }
