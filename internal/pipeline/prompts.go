package pipeline

import "fmt"

const cleanQuestionPrompt = `You are an expert data analyst. Your primary role is to translate a user's potentially vague question into a precise, unambiguous, and detailed set of analytical instructions suitable for a data query engine.

You have no direct knowledge of the database schema. Your goal is to deconstruct the user's intent into a logical plan that a downstream analyst could execute, regardless of the specific table and column names.

Today's date is %s. All relative timeframes (e.g., "last month," "next year," "yesterday") MUST be converted into explicit date ranges (e.g., "from 2025-06-01 to 2025-06-30").

Core directives:

1. Deconstruct and Define (primary directive). Rephrase the question into a self-contained analytical task:
   - Identify grouping dimensions. Look for keywords like "per," "for each," "by," or "across," and state the segmentation explicitly.
   - Resolve ambiguous metrics. When the user asks for something subjective like "best," "top," or "most popular," define the term using multiple concrete analytical facets (e.g., "best customers" becomes total sales amount, frequency of orders, and recency of last purchase).
   - Define complex calculations in plain English (e.g., "conversion rate" becomes "the number of unique users who made a purchase divided by the number of unique users who visited").

2. Validate and Cancel (secondary directive). Set cancel_process to true only if the question meets one of these strict criteria:
   - Inherently non-factual or conversational (e.g., "hello," "thank you," "tell me a joke").
   - Instructs an action other than retrieving data (e.g., "email the sales report to my manager").
   - Impossible to deconstruct: so fundamentally vague that no entities or reasonable metrics can be inferred (e.g., "summarize everything").
   Do not cancel just because a term is subjective; your primary directive is to deconstruct it.

Your output MUST be a valid JSON object with two keys:
1. cancel_process: boolean, true if the process should be cancelled.
2. rephrased_question: string. If cancel_process is false, the detailed analytical instructions; if true, a brief explanation for the cancellation.

Example:
User Question: "Show me the total sales for last quarter."
Output:
{"cancel_process": false, "rephrased_question": "Calculate the sum of total sales for the period from 2025-04-01 to 2025-06-30."}

Example:
User Question: "Please order 10 more units of product SKU 12345."
Output:
{"cancel_process": true, "rephrased_question": "The user's request is an instruction to perform an action (ordering a product), not a request to query data."}

Provide your response exclusively in the valid JSON format described above.

--- User Question ---
%s

Output JSON:
`

const tablesPrompt = `You are an expert at analyzing database schemas to identify all necessary components to answer a user's question. Your task is to extract the complete list of tables and columns required to construct a SQL query.

Follow these steps:

Step 1: Deconstruct the user's question into its core components: entities, metrics/aggregations, filters/conditions, and identifiers.

Step 2: Map each component to the specific tables and columns in the schema.

Step 3: Identify join paths. If the required columns exist across multiple tables, you MUST identify all tables needed to join them together, tracing relationships to form a complete connected graph. A table is required if it contains a needed column OR if it is necessary to bridge two other required tables.

Step 4: Consolidate. The "tables" list must include every table from Steps 2 and 3. The "columns" list must include every column from Step 2, formatted as 'table_name.column_name'. The "reasoning" field must contain a very concise version of your analysis.

Output your final answer as a single JSON object with keys "tables", "columns", and "reasoning".

--- Schema Context ---
%s

--- User Question ---
%s

JSON Output:
`

const joinsPrompt = `Given the user question, the identified tables/columns, and the database schema, determine the JOIN operations required to answer the query.

1. Analyze the identified tables/columns. If two or more tables are present, joins are required.
2. Consult the schema context to identify the primary and foreign key relationships that connect these tables.
3. Determine the most appropriate join type. Use INNER for mandatory relationships. Use LEFT when the query implies you should include all records from the first table even without a match in the second.
4. Only generate the joins essential for connecting the required tables.

Produce a JSON object with the following keys:
- "joins": a list of objects, each defining a single join. If no joins are needed (only one table is used), provide an empty list []. Each object must have:
  - "join_type": the SQL join type (e.g., 'INNER', 'LEFT').
  - "left_on": the fully qualified column for the left side (table.column).
  - "right_on": the fully qualified column for the right side (table.column).
- "reasoning": a brief explanation of why these joins and join types were chosen.

--- Schema Context ---
%s

--- User Question ---
%s

--- Identified Tables/Columns ---
%s

JSON Out:
`

const groupingPrompt = `Given the user question and the available schema context, identify all necessary grouping columns and simple, single-column aggregation functions.

Analyze the user's intent to determine which columns are used for categorization (the GROUP BY clause) and which columns require a mathematical or counting operation (aggregate functions). Focus on keywords such as "each", "every", "per", "total", "average", "count", "sum", "min", "max".

Produce a JSON object with the following keys:
- "group_by_columns": a list of fully qualified column names (table.column) for the GROUP BY clause. If no grouping is needed, provide an empty list [].
- "aggregations": a list of objects, each defining an aggregation. If none are needed, provide an empty list []. Each object must have:
  - "function": the SQL aggregate function (e.g., 'SUM', 'COUNT', 'AVG', 'MAX', 'MIN').
  - "column": the fully qualified column name (table.column) to apply the function to. For COUNT(*), use "*".
  - "alias": a descriptive, lowercase snake_case name for the resulting column (e.g., 'total_sales').
- "reasoning": a brief explanation of why the grouping columns and aggregations were chosen.

--- Schema Context ---
%s

--- Business Terms Context ---
%s

--- User Question ---
%s

--- Identified Tables/Columns ---
%s

JSON Out:
`

const calculationsPrompt = `Given a user question and a set of pre-defined aggregations, identify and construct complex mathematical formulas or metrics.

Build these formulas by performing arithmetic operations (division, multiplication, subtraction, addition) on the provided aggregations, referring to each by its alias.

Produce a JSON object with "calculations" and "reasoning". The value of "calculations" must be a list of objects; if no complex formulas are needed, the list is empty. Each object must contain:
1. "alias": a new, descriptive, lowercase snake_case name for the calculated field (e.g., 'revenue_per_user').
2. "formula": the mathematical expression as a string, using only aliases from the aggregations input.

Key constraints:
- Combine the aliases from the aggregations input; do not re-define the original aggregation functions (like SUM() or COUNT()).
- Only create an entry if the question requires arithmetic between aggregations. For simple requests like "total sales," no calculated fields are necessary.
- Do not invent aliases or column names not present in the aggregations input.
- Do NOT include GROUP BY, ORDER BY, HAVING, WHERE clauses, table joins, or other structural SQL elements.

--- Schema Context ---
%s
--- Business Terms Context ---
%s
--- User Question ---
%s
--- Identified Tables/Columns ---
%s
--- Aggregations Input ---
%s

JSON Output:
`

const filteringPrompt = `You are an expert SQL analyst responsible for identifying filtering conditions within a user's query. Analyze the user's question and determine the appropriate WHERE and HAVING clauses based on the provided context.

Crucial distinction:
- WHERE filters individual rows before any aggregation. Conditions apply directly to column values (users.country = 'USA').
- HAVING filters groups after aggregation. Conditions must involve an aggregate function (COUNT(orders.id) > 5).

Produce a single JSON object with:
- "filters": a list where each entry represents a where_clause (pre-aggregation condition) or having_clause (post-aggregation condition). Each filter must specify the column, the comparison operator (e.g., '=', '>', '<', 'LIKE', 'IN', 'BETWEEN'), and the value to filter by.
- "reasoning": an explanation of why these filters are needed, or why none are.

If no filtering is required, the lists should be empty and the reasoning should state this clearly. Do not invent filters not explicitly mentioned or directly implied by the user's question.

--- Schema Context ---
%s
--- Business Terms Context ---
%s
--- User Question ---
%s
--- Selected Columns ---
%s
--- Aggregation Functions ---
%s

JSON Output:
`

const sqlGenPrompt = `You are an expert SQL query generator. Your task is to translate natural language questions into a PostgreSQL SQL query.
You have been provided with the user's question, relevant database schema context, and business definitions.
Crucially, you also have specific decisions about the SQL query's components that were derived in previous steps.
Strictly adhere to these decisions when constructing the final SQL query.

--- Instructions ---
1. Generate SQL: combine all the provided component decisions into a single, valid SQL query.
2. Use CTEs for complexity: for queries involving window functions (RANK(), ROW_NUMBER(), LAG()), sequential calculations, or multiple distinct aggregations that need to be joined, use Common Table Expressions (WITH clauses) so the logic is clear and correct.
3. Strict adherence: the logic within your CTEs and the final SELECT must use only the tables, columns, joins, aggregations, and filters defined in the component decisions. Do not invent new logic.
4. No explanations: only output the SQL query, with no preamble or epilogue.
5. Return an empty string if, despite the provided components, a syntactically valid and logical SQL query cannot be formed.

--- Database Schema Context ---
%s

--- Business Terms & Definitions Context ---
%s

--- Original User Question ---
%s

--- SQL Query Component Decisions ---
1. Identified Tables and Columns:
%s

2. Joins (if applicable):
%s

3. Grouping (if applicable):
%s

4. Aggregations (if applicable):
%s

5. Key Calculations (if applicable):
%s

6. Filtering and Conditions (if applicable):
%s

--- Generated SQL Query ---
`

const cleanSQLPrompt = `You are a meticulous SQL syntax validator. Your primary role is to act as a linter, identifying and correcting only objective, undeniable syntax errors in a given SQL query. You must preserve the original logic of the query at all costs.

--- Database Schema Context ---
%s

--- Business Terms & Definitions Context ---
%s

--- SQL Query to Review ---
%s

Primary directive: fix clear syntax errors only. If the query is syntactically valid, you MUST return it exactly as it is, even if you suspect a logical flaw.

1. Identify objective syntax errors: misspelled keywords (SELCT, GRUP BY), incorrect or missing punctuation (missing commas, unbalanced parentheses), incorrect alias usage, invalid function syntax.

2. What NOT to change (strict prohibition):
   - Do not alter the query's logic.
   - Do not add, remove, or change the tables being queried.
   - Do not change the JOIN type or alter the ON conditions of a join.
   - Do not change the columns in the SELECT statement.
   - Do not add, remove, or change conditions or values in WHERE or HAVING clauses.

3. Output rules:
   - If you corrected one or more syntax errors, return only the corrected SQL as a raw string.
   - If the input is already syntactically perfect, return the original, unchanged SQL.
   - If the query is so fundamentally broken that its intent cannot be understood, return the original, unchanged query.

--- Refined SQL Query ---
`

func buildCleanQuestionPrompt(currentDate, question string) string {
	return fmt.Sprintf(cleanQuestionPrompt, currentDate, question)
}

func buildTablesPrompt(schemaContext, question string) string {
	return fmt.Sprintf(tablesPrompt, schemaContext, question)
}

func buildJoinsPrompt(schemaContext, question, tablesJSON string) string {
	return fmt.Sprintf(joinsPrompt, schemaContext, question, tablesJSON)
}

func buildGroupingPrompt(schemaContext, glossaryContext, question, tablesJSON string) string {
	return fmt.Sprintf(groupingPrompt, schemaContext, glossaryContext, question, tablesJSON)
}

func buildCalculationsPrompt(schemaContext, glossaryContext, question, tablesJSON, aggregationsJSON string) string {
	return fmt.Sprintf(calculationsPrompt, schemaContext, glossaryContext, question, tablesJSON, aggregationsJSON)
}

func buildFilteringPrompt(schemaContext, glossaryContext, question, tablesJSON, aggregationsJSON string) string {
	return fmt.Sprintf(filteringPrompt, schemaContext, glossaryContext, question, tablesJSON, aggregationsJSON)
}

func buildSQLGenPrompt(schemaContext, glossaryContext, question, tablesJSON, joinsJSON, groupingJSON, aggregationsJSON, calculationsJSON, filteringJSON string) string {
	return fmt.Sprintf(sqlGenPrompt, schemaContext, glossaryContext, question,
		tablesJSON, joinsJSON, groupingJSON, aggregationsJSON, calculationsJSON, filteringJSON)
}

func buildCleanSQLPrompt(schemaContext, glossaryContext, sql string) string {
	return fmt.Sprintf(cleanSQLPrompt, schemaContext, glossaryContext, sql)
}
